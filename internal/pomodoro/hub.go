package pomodoro

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTimerNotFound は指定IDのタイマーが存在しない、または他のユーザーの所有である場合に返される。
var ErrTimerNotFound = errors.New("pomodoro: timer not found")

// HubConfig はHubの設定を保持する。
type HubConfig struct {
	IdleTTL         time.Duration // 最終アクセスからこの時間を過ぎたインスタンスは破棄する
	MaxPerUser      int           // ユーザーごとのインスタンス上限。超えた場合は最も古いものを破棄する
	CleanupInterval time.Duration // 期限切れインスタンスのクリーンアップ間隔
}

// DefaultHubConfig はデフォルトのHub設定を返す。
func DefaultHubConfig() HubConfig {
	return HubConfig{
		IdleTTL:         2 * time.Hour,
		MaxPerUser:      5,
		CleanupInterval: 5 * time.Minute,
	}
}

// Observer はHubで発生した出来事の通知先。
// メトリクス収集に使用する。
type Observer interface {
	TimerOpened()
	TimerClosed()
	TimerCompleted(from, to Mode)
}

// instance はHubが管理するタイマー1つ分の情報。
type instance struct {
	id         string
	userID     string
	runner     *Runner
	lastAccess time.Time
}

// Hub はダッシュボードごとのタイマーインスタンスを管理する。
// 各インスタンスは1人のユーザーに属し、そのユーザーからのみ操作できる。
type Hub struct {
	config    HubConfig
	newTicker TickerFactory
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	instances map[string]*instance

	stopOnce sync.Once
	stopCh   chan struct{}
}

// HubOption はHubの設定を変更する。
type HubOption func(*Hub)

// WithHubTickerFactory は各Runnerに渡すティック源の生成関数を差し替える。
func WithHubTickerFactory(f TickerFactory) HubOption {
	return func(h *Hub) {
		h.newTicker = f
	}
}

// WithObserver はイベント通知先を設定する。
func WithObserver(o Observer) HubOption {
	return func(h *Hub) {
		h.observer = o
	}
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		h.now = now
	}
}

// NewHub はHubを生成する。
// CleanupIntervalが正の場合はバックグラウンドで期限切れインスタンスのクリーンアップを開始する。
func NewHub(config HubConfig, logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		config:    config,
		newTicker: NewTimeTicker,
		logger:    logger,
		now:       time.Now,
		instances: make(map[string]*instance),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if config.CleanupInterval > 0 {
		go h.cleanupLoop()
	}
	return h
}

// Create はユーザーの新しいタイマーインスタンスを作成し、IDと初期状態を返す。
func (h *Hub) Create(userID string) (string, Snapshot) {
	id := uuid.New().String()
	inst := &instance{
		id:         id,
		userID:     userID,
		lastAccess: h.now(),
	}
	inst.runner = NewRunner(NewTimer(),
		WithTickerFactory(h.newTicker),
		WithEventHandler(h.eventHandler(id, userID)),
	)

	h.mu.Lock()
	h.instances[id] = inst
	evicted := h.evictOverflowLocked(userID, id)
	h.mu.Unlock()

	for _, e := range evicted {
		h.closeInstance(e, "capacity")
	}
	if h.observer != nil {
		h.observer.TimerOpened()
	}

	h.logger.Debug("timer opened",
		slog.String("timer_id", id),
		slog.String("user_id", userID),
	)
	return id, inst.runner.Snapshot()
}

// Get はユーザーが所有するタイマーのRunnerを返し、最終アクセス時刻を更新する。
func (h *Hub) Get(userID, id string) (*Runner, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	inst, ok := h.instances[id]
	if !ok || inst.userID != userID {
		return nil, ErrTimerNotFound
	}
	inst.lastAccess = h.now()
	return inst.runner, nil
}

// Remove はユーザーが所有するタイマーを破棄する。ティック源も停止する。
func (h *Hub) Remove(userID, id string) error {
	h.mu.Lock()
	inst, ok := h.instances[id]
	if !ok || inst.userID != userID {
		h.mu.Unlock()
		return ErrTimerNotFound
	}
	delete(h.instances, id)
	h.mu.Unlock()

	h.closeInstance(inst, "removed")
	return nil
}

// RemoveUser はユーザーの全タイマーを破棄する。退会時に使用する。
func (h *Hub) RemoveUser(userID string) int {
	h.mu.Lock()
	var removed []*instance
	for id, inst := range h.instances {
		if inst.userID == userID {
			removed = append(removed, inst)
			delete(h.instances, id)
		}
	}
	h.mu.Unlock()

	for _, inst := range removed {
		h.closeInstance(inst, "user_removed")
	}
	return len(removed)
}

// Count は現在管理されているインスタンス数を返す。
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.instances)
}

// Stop はクリーンアップを停止し、全インスタンスを破棄する。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)

		h.mu.Lock()
		all := make([]*instance, 0, len(h.instances))
		for id, inst := range h.instances {
			all = append(all, inst)
			delete(h.instances, id)
		}
		h.mu.Unlock()

		for _, inst := range all {
			h.closeInstance(inst, "shutdown")
		}
	})
}

// evictOverflowLocked はユーザーのインスタンス数が上限を超えた分を、
// 最終アクセスが古い順にマップから取り除いて返す。keepIDのインスタンスは対象外。
func (h *Hub) evictOverflowLocked(userID, keepID string) []*instance {
	if h.config.MaxPerUser <= 0 {
		return nil
	}
	var owned []*instance
	total := 0
	for _, inst := range h.instances {
		if inst.userID != userID {
			continue
		}
		total++
		if inst.id != keepID {
			owned = append(owned, inst)
		}
	}

	var evicted []*instance
	for ; total > h.config.MaxPerUser && len(owned) > 0; total-- {
		oldest := 0
		for i, inst := range owned {
			if inst.lastAccess.Before(owned[oldest].lastAccess) {
				oldest = i
			}
		}
		evicted = append(evicted, owned[oldest])
		delete(h.instances, owned[oldest].id)
		owned = append(owned[:oldest], owned[oldest+1:]...)
	}
	return evicted
}

// cleanupLoop はバックグラウンドで期限切れインスタンスを定期的に破棄する。
func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(h.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.cleanup()
		case <-h.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからIdleTTLを超えたインスタンスを破棄する。
func (h *Hub) cleanup() {
	if h.config.IdleTTL <= 0 {
		return
	}
	now := h.now()

	h.mu.Lock()
	var expired []*instance
	for id, inst := range h.instances {
		if now.Sub(inst.lastAccess) > h.config.IdleTTL {
			expired = append(expired, inst)
			delete(h.instances, id)
		}
	}
	h.mu.Unlock()

	for _, inst := range expired {
		h.closeInstance(inst, "idle")
	}
}

func (h *Hub) closeInstance(inst *instance, reason string) {
	inst.runner.Close()
	if h.observer != nil {
		h.observer.TimerClosed()
	}
	h.logger.Debug("timer closed",
		slog.String("timer_id", inst.id),
		slog.String("user_id", inst.userID),
		slog.String("reason", reason),
	)
}

func (h *Hub) eventHandler(id, userID string) func(Event) {
	return func(ev Event) {
		if ev.Kind != EventCompleted {
			return
		}
		if h.observer != nil {
			h.observer.TimerCompleted(ev.From, ev.To)
		}
		h.logger.Info("timer mode completed",
			slog.String("timer_id", id),
			slog.String("user_id", userID),
			slog.String("from", ev.From.String()),
			slog.String("to", ev.To.String()),
			slog.Int("sessions", ev.Sessions),
		)
	}
}
