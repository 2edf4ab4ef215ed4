package pomodoro

import (
	"sync"
	"time"
)

// TickInterval はティックの周期。
const TickInterval = time.Second

// Ticker は周期的なティックの発生源。
// time.Tickerを抽象化し、テストで差し替えられるようにする。
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory は指定周期のTickerを生成する。
type TickerFactory func(d time.Duration) Ticker

// NewTimeTicker はtime.TickerによるTickerを生成する。
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }

// Runner はTimerを所有し、running=trueの間だけ1秒ティックを発生させる。
//
// ティック源はrunningがtrueになった時点で1つだけ生成され、
// falseになった時点またはClose時に停止する。
// 停止済みのティック源から遅れて届いたティックは世代番号で破棄するため、
// 同時に有効なティック源は常に高々1つとなる。
type Runner struct {
	mu        sync.Mutex
	timer     *Timer
	newTicker TickerFactory
	onEvent   func(Event)

	stop       chan struct{}
	generation uint64
	closed     bool
}

// RunnerOption はRunnerの設定を変更する。
type RunnerOption func(*Runner)

// WithTickerFactory はティック源の生成関数を差し替える。
func WithTickerFactory(f TickerFactory) RunnerOption {
	return func(r *Runner) {
		r.newTicker = f
	}
}

// WithEventHandler はティックごとのイベント通知先を設定する。
// ハンドラーはRunnerのロック外で呼ばれる。
func WithEventHandler(fn func(Event)) RunnerOption {
	return func(r *Runner) {
		r.onEvent = fn
	}
}

// NewRunner はTimerを所有するRunnerを生成する。
func NewRunner(timer *Timer, opts ...RunnerOption) *Runner {
	r := &Runner{
		timer:     timer,
		newTicker: NewTimeTicker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SwitchMode はTimer.SwitchModeを実行する。
func (r *Runner) SwitchMode(m Mode) Snapshot {
	return r.apply(func(t *Timer) error {
		t.SwitchMode(m)
		return nil
	})
}

// ToggleRun はTimer.ToggleRunを実行する。
func (r *Runner) ToggleRun() Snapshot {
	return r.apply(func(t *Timer) error {
		t.ToggleRun()
		return nil
	})
}

// Reset はTimer.Resetを実行する。
func (r *Runner) Reset() Snapshot {
	return r.apply(func(t *Timer) error {
		t.Reset()
		return nil
	})
}

// FastForward はTimer.FastForwardを実行する。
func (r *Runner) FastForward(seconds int) Snapshot {
	return r.apply(func(t *Timer) error {
		t.FastForward(seconds)
		return nil
	})
}

// ResetSessions はTimer.ResetSessionsを実行する。
func (r *Runner) ResetSessions() Snapshot {
	return r.apply(func(t *Timer) error {
		t.ResetSessions()
		return nil
	})
}

// BeginEdit はTimer.BeginEditを実行する。
func (r *Runner) BeginEdit() (Snapshot, error) {
	var err error
	s := r.apply(func(t *Timer) error {
		err = t.BeginEdit()
		return err
	})
	return s, err
}

// CommitEdit はTimer.CommitEditを実行する。
func (r *Runner) CommitEdit(text string) (Snapshot, error) {
	var err error
	s := r.apply(func(t *Timer) error {
		err = t.CommitEdit(text)
		return err
	})
	return s, err
}

// CancelEdit はTimer.CancelEditを実行する。
func (r *Runner) CancelEdit() (Snapshot, error) {
	var err error
	s := r.apply(func(t *Timer) error {
		err = t.CancelEdit()
		return err
	})
	return s, err
}

// Snapshot は現在の状態を返す。
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer.Snapshot()
}

// Armed はティック源が有効かどうかを返す。
func (r *Runner) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Close はティック源を停止し、以降のティックを発生させない。
// 複数回呼んでも安全。
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.disarmLocked()
}

// apply は状態変更をロック下で実行し、runningフラグに合わせてティック源を同期する。
func (r *Runner) apply(fn func(t *Timer) error) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = fn(r.timer)
	r.syncLocked()
	return r.timer.Snapshot()
}

// syncLocked はrunningがtrueならティック源を用意し、falseなら停止する。
func (r *Runner) syncLocked() {
	switch {
	case r.timer.Running() && !r.closed && r.stop == nil:
		r.armLocked()
	case !r.timer.Running() && r.stop != nil:
		r.disarmLocked()
	}
}

func (r *Runner) armLocked() {
	r.generation++
	stop := make(chan struct{})
	r.stop = stop
	go r.loop(r.newTicker(TickInterval), stop, r.generation)
}

func (r *Runner) disarmLocked() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.stop = nil
}

// loop はティック源からの通知をTimer.Tickに変換する。
func (r *Runner) loop(ticker Ticker, stop <-chan struct{}, gen uint64) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			ev, ok := r.tick(gen)
			if !ok {
				return
			}
			if r.onEvent != nil {
				r.onEvent(ev)
			}
		}
	}
}

func (r *Runner) tick(gen uint64) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil || r.generation != gen {
		return Event{}, false
	}
	ev := r.timer.Tick()
	r.syncLocked()
	return ev, true
}
