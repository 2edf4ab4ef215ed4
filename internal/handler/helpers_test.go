package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timeless/internal/middleware"
	"github.com/hitoshi/timeless/internal/model"
	"github.com/hitoshi/timeless/internal/pomodoro"
	"github.com/hitoshi/timeless/internal/todo"
)

// withUserID はテスト用にコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", w.Body.String(), err)
	}
	return v
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	body := decodeBody[apiErrorResponse](t, w)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- todo.Storeのインメモリ実装 ---

type memTaskStore struct {
	mu      sync.Mutex
	tasks   map[string]*model.Task
	seq     int
	now     time.Time
	failAll error

	// failUpdate はUpdateだけを失敗させる
	failUpdate  error
	updateCalls int

	// failCount はCountByUserIDだけを失敗させる
	failCount error
	listCalls int
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{
		tasks: make(map[string]*model.Task),
		now:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memTaskStore) ListByUserID(ctx context.Context, userID string) ([]*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.failAll != nil {
		return nil, s.failAll
	}
	var out []*model.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memTaskStore) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (s *memTaskStore) CountByUserID(ctx context.Context, userID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return 0, 0, s.failAll
	}
	if s.failCount != nil {
		return 0, 0, s.failCount
	}
	var completed, total int
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		total++
		if t.Completed {
			completed++
		}
	}
	return completed, total, nil
}

func (s *memTaskStore) Create(ctx context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.seq++
	task.ID = fmt.Sprintf("task-%d", s.seq)
	task.CreatedAt = s.now.Add(time.Duration(s.seq) * time.Second)
	c := *task
	s.tasks[task.ID] = &c
	return nil
}

func (s *memTaskStore) Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.failAll != nil {
		return nil, s.failAll
	}
	if s.failUpdate != nil {
		return nil, s.failUpdate
	}
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	if patch.Text != nil {
		t.Text = *patch.Text
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	c := *t
	return &c, nil
}

func (s *memTaskStore) Delete(ctx context.Context, userID, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return false, s.failAll
	}
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(s.tasks, taskID)
	return true, nil
}

func (s *memTaskStore) get(taskID string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return model.Task{}, false
	}
	return *t, true
}

func (s *memTaskStore) seed(userID, text string, completed bool) string {
	task := &model.Task{UserID: userID, Text: text, Completed: completed}
	_ = s.Create(context.Background(), task)
	return task.ID
}

func newTodoAdapter(store todo.Store) *TodoServiceAdapter {
	return NewTodoServiceAdapter(todo.NewService(store, discardLogger()), discardLogger())
}

// --- pomodoro.Hubのテスト用ティッカー ---

type idleTicker struct {
	ch chan time.Time
}

func (t *idleTicker) C() <-chan time.Time { return t.ch }
func (t *idleTicker) Stop()               {}

func newTestHub(t *testing.T) *pomodoro.Hub {
	t.Helper()
	cfg := pomodoro.DefaultHubConfig()
	cfg.CleanupInterval = 0
	hub := pomodoro.NewHub(cfg, discardLogger(),
		pomodoro.WithHubTickerFactory(func(time.Duration) pomodoro.Ticker {
			return &idleTicker{ch: make(chan time.Time)}
		}),
	)
	t.Cleanup(hub.Stop)
	return hub
}
