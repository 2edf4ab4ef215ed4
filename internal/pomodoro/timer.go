// Package pomodoro はポモドーロタイマーの状態機械と、
// その1秒ティックを所有する実行器を提供する。
//
// Timer は作業→休憩→作業…の3状態のリングを表す。
// カウントダウンが0に達すると次のモードへ自動的に遷移し、そのまま開始する。
// 4回目ごとの作業セッション完了後は短い休憩ではなく長い休憩に入る。
package pomodoro

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode はタイマーのフェーズを表す。
type Mode int

const (
	// ModeWork は作業（集中）フェーズ。
	ModeWork Mode = iota
	// ModeShortBreak は短い休憩フェーズ。
	ModeShortBreak
	// ModeLongBreak は長い休憩フェーズ。
	ModeLongBreak
)

// Modes は表示順に並べた全モード。
var Modes = []Mode{ModeWork, ModeShortBreak, ModeLongBreak}

const (
	// MaxDurationMinutes は設定可能な最大の時間（分）。
	MaxDurationMinutes = 120

	// sessionsPerLongBreak は長い休憩に入るまでの作業セッション数。
	sessionsPerLongBreak = 4
)

var (
	// ErrTimerRunning は実行中に時間編集を開始しようとした場合に返される。
	ErrTimerRunning = errors.New("pomodoro: timer is running")
	// ErrNotEditing は編集中でないのに確定・取消を要求した場合に返される。
	ErrNotEditing = errors.New("pomodoro: no edit in progress")
	// ErrUnknownMode は不明なモード文字列を解析した場合に返される。
	ErrUnknownMode = errors.New("pomodoro: unknown mode")
)

// String はAPIで使用するモード識別子を返す。
func (m Mode) String() string {
	switch m {
	case ModeWork:
		return "work"
	case ModeShortBreak:
		return "short_break"
	case ModeLongBreak:
		return "long_break"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Label は画面表示用のモード名を返す。
func (m Mode) Label() string {
	switch m {
	case ModeWork:
		return "Focus"
	case ModeShortBreak:
		return "Short Break"
	case ModeLongBreak:
		return "Long Break"
	default:
		return m.String()
	}
}

// ParseMode はモード識別子を解析する。
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(s) {
	case "work":
		return ModeWork, nil
	case "short_break":
		return ModeShortBreak, nil
	case "long_break":
		return ModeLongBreak, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Config はモードごとの時間（分）を保持する。
type Config struct {
	Work       int
	ShortBreak int
	LongBreak  int
}

// DefaultConfig は組み込みのデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{Work: 25, ShortBreak: 5, LongBreak: 15}
}

// Minutes は指定モードの時間（分）を返す。
func (c Config) Minutes(m Mode) int {
	switch m {
	case ModeShortBreak:
		return c.ShortBreak
	case ModeLongBreak:
		return c.LongBreak
	default:
		return c.Work
	}
}

// Seconds は指定モードの時間（秒）を返す。
func (c Config) Seconds(m Mode) int {
	return c.Minutes(m) * 60
}

func (c *Config) set(m Mode, minutes int) {
	switch m {
	case ModeShortBreak:
		c.ShortBreak = minutes
	case ModeLongBreak:
		c.LongBreak = minutes
	default:
		c.Work = minutes
	}
}

// EventKind はTickの結果の種類を表す。
type EventKind int

const (
	// EventIdle は何も変化しなかったティック。
	EventIdle EventKind = iota
	// EventDecremented は残り時間が1秒減ったティック。
	EventDecremented
	// EventCompleted はモードが完了し次のモードへ遷移したティック。
	EventCompleted
)

// Event はTickで起きたことを表す。
// EventCompleted の場合のみ From と To が意味を持つ。
type Event struct {
	Kind     EventKind
	From     Mode
	To       Mode
	Sessions int
}

// Timer はポモドーロタイマーの状態機械。
// ゴルーチンセーフではない。並行アクセスはRunnerが直列化する。
type Timer struct {
	config    Config
	mode      Mode
	remaining int
	running   bool
	sessions  int

	editing  bool
	editText string
}

// NewTimer はデフォルト設定の作業モードで停止中のTimerを生成する。
func NewTimer() *Timer {
	return NewTimerWithConfig(DefaultConfig())
}

// NewTimerWithConfig は指定設定の作業モードで停止中のTimerを生成する。
func NewTimerWithConfig(cfg Config) *Timer {
	return &Timer{
		config:    cfg,
		mode:      ModeWork,
		remaining: cfg.Seconds(ModeWork),
	}
}

// SwitchMode はモードを切り替え、残り時間をそのモードの時間に戻して停止する。
// 実行中でも呼び出せ、元のモードの進捗は破棄される。
func (t *Timer) SwitchMode(target Mode) {
	t.enter(target, false)
}

// ToggleRun は実行・一時停止を切り替える。
func (t *Timer) ToggleRun() {
	t.running = !t.running
}

// Reset は現在のモードのまま残り時間を戻して停止する。
func (t *Timer) Reset() {
	t.remaining = t.config.Seconds(t.mode)
	t.running = false
}

// FastForward は残り時間をseconds秒進める（0未満にはならない）。
// 実行状態は変えず、0に達してもモード遷移は次のTickまで起きない。
// 0以下の値は無視する。
func (t *Timer) FastForward(seconds int) {
	if seconds <= 0 {
		return
	}
	t.remaining -= seconds
	if t.remaining < 0 {
		t.remaining = 0
	}
}

// BeginEdit は現在のモードの時間編集を開始する。
// 実行中の場合はErrTimerRunningを返し、状態を変更しない。
func (t *Timer) BeginEdit() error {
	if t.running {
		return ErrTimerRunning
	}
	t.editing = true
	t.editText = strconv.Itoa(t.config.Minutes(t.mode))
	return nil
}

// CommitEdit は編集内容を確定する。
// textの先頭の整数部分（"1.5"なら1、"30min"なら30）が1〜MaxDurationMinutesであれば
// 現在のモードの時間を更新して残り時間を合わせる。
// それ以外の値は黙って破棄する。いずれの場合も編集を終了する。
func (t *Timer) CommitEdit(text string) error {
	if !t.editing {
		return ErrNotEditing
	}
	t.endEdit()

	minutes, ok := leadingInt(text)
	if !ok || minutes <= 0 || minutes > MaxDurationMinutes {
		return nil
	}
	t.config.set(t.mode, minutes)
	t.remaining = minutes * 60
	return nil
}

// leadingInt は前後の空白を除いたtextの先頭にある符号付き整数を読む。
// 数字に続く文字は無視する。数字が1つもない場合はfalseを返す。
func leadingInt(text string) (int, bool) {
	s := strings.TrimSpace(text)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CancelEdit は編集を取り消す。
// 現在のモードの時間は直前に確定した値ではなく組み込みのデフォルト値に戻る。
func (t *Timer) CancelEdit() error {
	if !t.editing {
		return ErrNotEditing
	}
	t.endEdit()

	minutes := DefaultConfig().Minutes(t.mode)
	t.config.set(t.mode, minutes)
	t.remaining = minutes * 60
	return nil
}

// ResetSessions は完了セッション数を0に戻す。
func (t *Timer) ResetSessions() {
	t.sessions = 0
}

// Tick は1秒分の評価を行う。
// 実行中かつ残り時間が正なら1秒減らす。残り時間が0なら完了処理を行う。
// 2つの分岐は同じティック内では排他的で、0になったティックの次のティックで遷移する。
func (t *Timer) Tick() Event {
	if t.running && t.remaining > 0 {
		t.remaining--
		return Event{Kind: EventDecremented, From: t.mode, To: t.mode, Sessions: t.sessions}
	}
	if t.remaining != 0 {
		return Event{Kind: EventIdle, From: t.mode, To: t.mode, Sessions: t.sessions}
	}

	from := t.mode
	next := ModeWork
	if from == ModeWork {
		t.sessions++
		next = ModeShortBreak
		if t.sessions%sessionsPerLongBreak == 0 {
			next = ModeLongBreak
		}
	}
	t.enter(next, true)
	return Event{Kind: EventCompleted, From: from, To: next, Sessions: t.sessions}
}

// Progress は現在のモードの進捗率を[0,1]で返す。
func (t *Timer) Progress() float64 {
	total := t.config.Seconds(t.mode)
	if total <= 0 {
		return 0
	}
	p := float64(total-t.remaining) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Snapshot は現在の状態のコピーを返す。
func (t *Timer) Snapshot() Snapshot {
	return Snapshot{
		Mode:      t.mode,
		Remaining: t.remaining,
		Running:   t.running,
		Sessions:  t.sessions,
		Editing:   t.editing,
		EditText:  t.editText,
		Config:    t.config,
		Progress:  t.Progress(),
	}
}

// Running は実行中かどうかを返す。
func (t *Timer) Running() bool {
	return t.running
}

func (t *Timer) enter(m Mode, run bool) {
	t.mode = m
	t.remaining = t.config.Seconds(m)
	t.running = run
}

func (t *Timer) endEdit() {
	t.editing = false
	t.editText = ""
}

// Snapshot はTimerのある時点の状態を表す。
type Snapshot struct {
	Mode      Mode
	Remaining int
	Running   bool
	Sessions  int
	Editing   bool
	EditText  string
	Config    Config
	Progress  float64
}

// Display は残り時間を "mm:ss" 形式で返す。
func (s Snapshot) Display() string {
	return FormatSeconds(s.Remaining)
}

// FormatSeconds は秒数を "mm:ss" 形式に整形する。
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
