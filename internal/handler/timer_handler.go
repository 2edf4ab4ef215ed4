package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/pomodoro"
)

// TimerServiceInterface はタイマーハンドラーが必要とするインスタンス管理のインターフェース。
// pomodoro.Hubが満たす。
type TimerServiceInterface interface {
	Create(userID string) (string, pomodoro.Snapshot)
	Get(userID, id string) (*pomodoro.Runner, error)
	Remove(userID, id string) error
}

// TimerHandler はポモドーロタイマーのHTTPハンドラー。
// 各操作は変更後のスナップショットを返す。
type TimerHandler struct {
	timers TimerServiceInterface
}

// NewTimerHandler はTimerHandlerを生成する。
func NewTimerHandler(timers TimerServiceInterface) *TimerHandler {
	return &TimerHandler{timers: timers}
}

type timerResponse struct {
	ID        string         `json:"id"`
	Mode      string         `json:"mode"`
	Label     string         `json:"label"`
	Remaining int            `json:"remaining"`
	Display   string         `json:"display"`
	Running   bool           `json:"running"`
	Sessions  int            `json:"sessions"`
	Editing   bool           `json:"editing"`
	EditText  string         `json:"edit_text"`
	Progress  float64        `json:"progress"`
	Durations map[string]int `json:"durations"`
}

type switchModeRequest struct {
	Mode string `json:"mode"`
}

type fastForwardRequest struct {
	Seconds int `json:"seconds"`
}

type commitEditRequest struct {
	Value string `json:"value"`
}

// Create はタイマーインスタンスを作成する。
// POST /api/timers
func (h *TimerHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, snap := h.timers.Create(userID)
	writeJSON(w, http.StatusCreated, toTimerResponse(id, snap))
}

// Get は現在のスナップショットを返す。
// GET /api/timers/{id}
func (h *TimerHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.Snapshot(), nil
	})
}

// Delete はインスタンスを破棄する。ティッカーも停止する。
// DELETE /api/timers/{id}
func (h *TimerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.timers.Remove(userID, id); err != nil {
		handleServiceError(w, timerError(id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SwitchMode はモードを切り替える。
// POST /api/timers/{id}/mode
func (h *TimerHandler) SwitchMode(w http.ResponseWriter, r *http.Request) {
	var req switchModeRequest
	if apiErr := decodeJSON(r, &req, false); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	mode, err := pomodoro.ParseMode(req.Mode)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidModeError(req.Mode))
		return
	}

	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.SwitchMode(mode), nil
	})
}

// ToggleRun は実行・一時停止を切り替える。
// POST /api/timers/{id}/toggle
func (h *TimerHandler) ToggleRun(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.ToggleRun(), nil
	})
}

// Reset は現在のモードの残り時間を戻して停止する。
// POST /api/timers/{id}/reset
func (h *TimerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.Reset(), nil
	})
}

// FastForward は残り時間を進める。0以下の秒数は無視される。
// POST /api/timers/{id}/fast-forward
func (h *TimerHandler) FastForward(w http.ResponseWriter, r *http.Request) {
	var req fastForwardRequest
	if apiErr := decodeJSON(r, &req, false); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.FastForward(req.Seconds), nil
	})
}

// BeginEdit は時間編集を開始する。実行中は409を返す。
// POST /api/timers/{id}/edit
func (h *TimerHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.BeginEdit()
	})
}

// CommitEdit は編集を確定する。範囲外の値は黙って破棄され、200を返す。
// POST /api/timers/{id}/edit/commit
func (h *TimerHandler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	var req commitEditRequest
	if apiErr := decodeJSON(r, &req, false); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.CommitEdit(req.Value)
	})
}

// CancelEdit は編集を取り消す。
// POST /api/timers/{id}/edit/cancel
func (h *TimerHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.CancelEdit()
	})
}

// ResetSessions は完了セッション数を0に戻す。
// POST /api/timers/{id}/sessions/reset
func (h *TimerHandler) ResetSessions(w http.ResponseWriter, r *http.Request) {
	h.withRunner(w, r, func(runner *pomodoro.Runner) (pomodoro.Snapshot, error) {
		return runner.ResetSessions(), nil
	})
}

// withRunner はURLのタイマーを取得してfnを適用し、結果のスナップショットを返す。
func (h *TimerHandler) withRunner(w http.ResponseWriter, r *http.Request, fn func(*pomodoro.Runner) (pomodoro.Snapshot, error)) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	runner, err := h.timers.Get(userID, id)
	if err != nil {
		handleServiceError(w, timerError(id, err))
		return
	}

	snap, err := fn(runner)
	if err != nil {
		handleServiceError(w, timerError(id, err))
		return
	}
	writeJSON(w, http.StatusOK, toTimerResponse(id, snap))
}

// timerError はpomodoroパッケージのエラーをAPIErrorに変換する。
func timerError(id string, err error) error {
	switch {
	case errors.Is(err, pomodoro.ErrTimerNotFound):
		return model.NewTimerNotFoundError(id)
	case errors.Is(err, pomodoro.ErrTimerRunning):
		return model.NewTimerRunningError()
	case errors.Is(err, pomodoro.ErrNotEditing):
		return model.NewNotEditingError()
	default:
		return err
	}
}

func toTimerResponse(id string, s pomodoro.Snapshot) timerResponse {
	durations := make(map[string]int, len(pomodoro.Modes))
	for _, m := range pomodoro.Modes {
		durations[m.String()] = s.Config.Minutes(m)
	}
	return timerResponse{
		ID:        id,
		Mode:      s.Mode.String(),
		Label:     s.Mode.Label(),
		Remaining: s.Remaining,
		Display:   s.Display(),
		Running:   s.Running,
		Sessions:  s.Sessions,
		Editing:   s.Editing,
		EditText:  s.EditText,
		Progress:  s.Progress,
		Durations: durations,
	}
}
