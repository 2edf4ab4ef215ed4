// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, todo, timer, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeInvalidUsername    = "INVALID_USERNAME"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeInvalidPassword    = "INVALID_PASSWORD"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeInvalidTaskText    = "INVALID_TASK_TEXT"
	ErrCodeTimerNotFound      = "TIMER_NOT_FOUND"
	ErrCodeTimerRunning       = "TIMER_RUNNING"
	ErrCodeNotEditing         = "NOT_EDITING"
	ErrCodeInvalidMode        = "INVALID_MODE"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeCSRFFailed         = "CSRF_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidCredentialsError はユーザー名またはパスワードが一致しない場合のエラーを生成する。
// どちらが誤っているかは返さない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password",
		Category: "auth",
		Action:   "Check your username and password and try again.",
	}
}

// NewUsernameTakenError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("Username %q is already taken", username),
		Category: "auth",
		Action:   "Choose a different username.",
	}
}

// NewInvalidUsernameError は無効なユーザー名のエラーを生成する。
func NewInvalidUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUsername,
		Message:  "Username must be 3-32 characters of letters, digits, '.', '_' or '-'",
		Category: "validation",
		Action:   "Enter a different username.",
	}
}

// NewInvalidEmailError は無効なメールアドレスのエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "Email address is not valid",
		Category: "validation",
		Action:   "Enter an email address such as name@example.com.",
	}
}

// NewInvalidPasswordError はパスワードが要件を満たさない場合のエラーを生成する。
func NewInvalidPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPassword,
		Message:  fmt.Sprintf("Password must be at least %d characters", minLength),
		Category: "validation",
		Action:   "Choose a longer password.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewTaskNotFoundError はタスクが見つからない場合のエラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("Task not found: %s", taskID),
		Category: "todo",
		Action:   "Reload the list and try again.",
	}
}

// NewInvalidTaskTextError はタスク本文が空の場合のエラーを生成する。
func NewInvalidTaskTextError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTaskText,
		Message:  "Task text must not be empty",
		Category: "validation",
		Action:   "Enter some text for the task.",
	}
}

// NewTimerNotFoundError はタイマーインスタンスが見つからない場合のエラーを生成する。
func NewTimerNotFoundError(timerID string) *APIError {
	return &APIError{
		Code:     ErrCodeTimerNotFound,
		Message:  fmt.Sprintf("Timer not found: %s", timerID),
		Category: "timer",
		Action:   "Reload the dashboard to start a new timer.",
	}
}

// NewTimerRunningError は実行中に時間を編集しようとした場合のエラーを生成する。
func NewTimerRunningError() *APIError {
	return &APIError{
		Code:     ErrCodeTimerRunning,
		Message:  "Durations cannot be edited while the timer is running",
		Category: "timer",
		Action:   "Pause the timer first.",
	}
}

// NewNotEditingError は編集中でないのに確定・取消を要求した場合のエラーを生成する。
func NewNotEditingError() *APIError {
	return &APIError{
		Code:     ErrCodeNotEditing,
		Message:  "No duration edit is in progress",
		Category: "timer",
		Action:   "Start editing the duration first.",
	}
}

// NewInvalidModeError は無効なタイマーモードのエラーを生成する。
func NewInvalidModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMode,
		Message:  fmt.Sprintf("Invalid timer mode: %s", mode),
		Category: "validation",
		Action:   "Use one of work, short_break or long_break.",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Send a well-formed JSON request body.",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFFailedError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
