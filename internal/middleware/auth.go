// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/North004/Server/internal/auth"
	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/repository"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// NewAuthMiddleware はHTTP Only Cookieから証明を読み取り、検証するミドルウェアを返す。
// 証明をユーザーIDに解決し、アカウントの現存をDBで確認したうえで、
// ユーザーをリクエストコンテキストに注入する。
// Cookie欠落・証明無効・アカウント削除済みはいずれも401を返す。
// ストア障害のみ500を返す。
func NewAuthMiddleware(issuer auth.IdentityIssuer, userRepo repository.UserRepository) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieから証明を取得
			cookie, err := r.Cookie(issuer.CookieName())
			if err != nil || cookie.Value == "" {
				WriteUnauthorized(w)
				return
			}

			// 2. 証明をユーザーIDに解決
			userID, err := issuer.Resolve(r.Context(), cookie.Value)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidProof) {
					WriteUnauthorized(w)
					return
				}
				slog.Error("failed to resolve identity proof",
					slog.String("error", err.Error()),
				)
				WriteServerError(w)
				return
			}

			// 3. アカウントの現存を確認。
			// 有効な証明を持っていてもアカウントが削除済みなら未認証扱い。
			user, err := userRepo.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to load authenticated user",
					slog.String("error", err.Error()),
				)
				WriteServerError(w)
				return
			}
			if user == nil {
				WriteUnauthorized(w)
				return
			}

			// 4. 認証済みユーザーをコンテキストに注入
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
