package auth

import (
	"context"

	"github.com/hitoshi/timeless/internal/model"
)

// Decision はページガードの判定結果。
// Redirectが空の場合はアクセスを許可する。
type Decision struct {
	User     *model.User
	Redirect string
}

// Allowed はアクセスが許可されたかどうかを返す。
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// CurrentUserGetter はセッションIDから現在のユーザーを取得する。
type CurrentUserGetter interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// Guard はページを表示する前にログイン状態を確認する。
type Guard func(ctx context.Context, users CurrentUserGetter, sessionID string) (Decision, error)

// RequireAuthenticated はログイン済みの場合のみ許可し、未ログインならredirectへ誘導するガードを返す。
func RequireAuthenticated(redirect string) Guard {
	return func(ctx context.Context, users CurrentUserGetter, sessionID string) (Decision, error) {
		user, err := users.GetCurrentUser(ctx, sessionID)
		if err != nil {
			return Decision{}, err
		}
		if user == nil {
			return Decision{Redirect: redirect}, nil
		}
		return Decision{User: user}, nil
	}
}

// RequireUnauthenticated は未ログインの場合のみ許可し、ログイン済みならredirectへ誘導するガードを返す。
func RequireUnauthenticated(redirect string) Guard {
	return func(ctx context.Context, users CurrentUserGetter, sessionID string) (Decision, error) {
		user, err := users.GetCurrentUser(ctx, sessionID)
		if err != nil {
			return Decision{}, err
		}
		if user != nil {
			return Decision{User: user, Redirect: redirect}, nil
		}
		return Decision{}, nil
	}
}
