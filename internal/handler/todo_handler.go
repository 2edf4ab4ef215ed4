package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timeless/internal/model"
)

// taskList はユーザーのタスク一覧と件数を表す。
type taskList struct {
	Tasks     []model.Task
	Completed int
	Total     int
}

// taskMutation は成功した変更操作と変更後の件数を表す。
// CountsUnavailableが立っている場合、件数は取得できていない。
type taskMutation struct {
	Op                string
	Task              model.Task
	Completed         int
	Total             int
	CountsUnavailable bool
}

// TodoServiceInterface はTo-Doハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	ListTasks(ctx context.Context, userID string) (*taskList, error)
	AddTask(ctx context.Context, userID, text string) (*taskMutation, error)
	ToggleTask(ctx context.Context, userID, taskID string) (*taskMutation, error)
	// UpdateTask はnilでない項目を更新する。本文が空白のみの場合はタスクを削除する。
	UpdateTask(ctx context.Context, userID, taskID string, text *string, completed *bool) (*taskMutation, error)
	DeleteTask(ctx context.Context, userID, taskID string) (*taskMutation, error)
}

// TodoHandler はTo-DoリストのHTTPハンドラー。
type TodoHandler struct {
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface) *TodoHandler {
	return &TodoHandler{service: service}
}

type taskResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

type taskListResponse struct {
	Tasks     []taskResponse `json:"tasks"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
}

type taskMutationResponse struct {
	Op                string       `json:"op"`
	Task              taskResponse `json:"task"`
	Completed         int          `json:"completed"`
	Total             int          `json:"total"`
	CountsUnavailable bool         `json:"counts_unavailable,omitempty"`
}

type addTaskRequest struct {
	Text string `json:"text"`
}

type updateTaskRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

// ListTasks はタスク一覧を新しい順に返す。
// GET /api/todos
func (h *TodoHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListTasks(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := taskListResponse{
		Tasks:     make([]taskResponse, len(list.Tasks)),
		Completed: list.Completed,
		Total:     list.Total,
	}
	for i, t := range list.Tasks {
		resp.Tasks[i] = toTaskResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddTask はタスクを追加する。
// POST /api/todos
func (h *TodoHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addTaskRequest
	if apiErr := decodeJSON(r, &req, false); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	m, err := h.service.AddTask(r.Context(), userID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskMutationResponse(m))
}

// ToggleTask は完了状態を反転する。
// POST /api/todos/{id}/toggle
func (h *TodoHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	m, err := h.service.ToggleTask(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskMutationResponse(m))
}

// UpdateTask は本文または完了状態を更新する。
// PATCH /api/todos/{id}
func (h *TodoHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if apiErr := decodeJSON(r, &req, false); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	if req.Text == nil && req.Completed == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("text or completed is required"))
		return
	}

	m, err := h.service.UpdateTask(r.Context(), userID, chi.URLParam(r, "id"), req.Text, req.Completed)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskMutationResponse(m))
}

// DeleteTask はタスクを削除する。
// DELETE /api/todos/{id}
func (h *TodoHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	m, err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskMutationResponse(m))
}

func toTaskResponse(t model.Task) taskResponse {
	return taskResponse{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
	}
}

func toTaskMutationResponse(m *taskMutation) taskMutationResponse {
	return taskMutationResponse{
		Op:                m.Op,
		Task:              toTaskResponse(m.Task),
		Completed:         m.Completed,
		Total:             m.Total,
		CountsUnavailable: m.CountsUnavailable,
	}
}
