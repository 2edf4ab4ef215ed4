// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/timeless/internal/pomodoro"
	"github.com/hitoshi/timeless/internal/todo"
)

const namespace = "timeless"

// 認証方式のラベル値
const (
	AuthMethodPassword = "password"
	AuthMethodSignup   = "signup"
	AuthMethodGoogle   = "google"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(method string, ok bool)
	RecordSessionsDeleted(count int64)
	ObserveHTTPRequest(method string, status int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
// pomodoro.Observerとtodo.Observerも兼ねる。
type Collector struct {
	authAttempts     *prometheus.CounterVec
	todoMutations    *prometheus.CounterVec
	timerTransitions *prometheus.CounterVec
	activeTimers     prometheus.Gauge
	sessionsDeleted  prometheus.Counter
	httpStatus       *prometheus.CounterVec
	httpLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "認証試行の合計数（方式・結果別）",
		}, []string{"method", "result"}),
		todoMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "todo_mutations_total",
			Help:      "タスク変更操作の合計数（種類・結果別）",
		}, []string{"op", "result"}),
		timerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_completions_total",
			Help:      "タイマーのモード完了による自動遷移の合計数",
		}, []string{"from", "to"}),
		activeTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_timers",
			Help:      "現在保持しているタイマーインスタンス数",
		}),
		sessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_sessions_deleted_total",
			Help:      "クリーンアップで削除した期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTPメソッド・ステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTPリクエストの処理時間（秒）",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.todoMutations,
		c.timerTransitions,
		c.activeTimers,
		c.sessionsDeleted,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordAuthAttempt は認証試行を記録する。
func (c *Collector) RecordAuthAttempt(method string, ok bool) {
	c.authAttempts.WithLabelValues(method, resultLabel(ok)).Inc()
}

// TaskMutated はタスク変更操作の結果を記録する。
func (c *Collector) TaskMutated(op todo.Op, ok bool) {
	c.todoMutations.WithLabelValues(string(op), resultLabel(ok)).Inc()
}

// TimerOpened はタイマーインスタンスの生成を記録する。
func (c *Collector) TimerOpened() {
	c.activeTimers.Inc()
}

// TimerClosed はタイマーインスタンスの破棄を記録する。
func (c *Collector) TimerClosed() {
	c.activeTimers.Dec()
}

// TimerCompleted はモード完了による遷移を記録する。
func (c *Collector) TimerCompleted(from, to pomodoro.Mode) {
	c.timerTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordSessionsDeleted は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsDeleted(count int64) {
	c.sessionsDeleted.Add(float64(count))
}

// ObserveHTTPRequest はHTTPレスポンスのステータスと処理時間を記録する。
func (c *Collector) ObserveHTTPRequest(method string, status int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ MetricsCollector  = (*Collector)(nil)
	_ pomodoro.Observer = (*Collector)(nil)
	_ todo.Observer     = (*Collector)(nil)
)
