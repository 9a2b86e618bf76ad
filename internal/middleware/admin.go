// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/lockgate/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// accountKeyContextKey はリクエストコンテキストに呼び出し元アカウントを格納するためのキー。
var accountKeyContextKey = contextKey("account_key")

// SessionFinder はセッションの検索に必要なインターフェース。
// ディレクトリ層の部分集合として定義する。
type SessionFinder interface {
	FindSession(ctx context.Context, id string) (*model.Session, error)
}

// AdminChecker は「何をもって認可済みとするか」を差し替え可能にする述語。
// 同梱のPostgreSQL実装はserver_adminフラグで判定するが、
// ホスト統合側で独自の規則に置き換えられる。
type AdminChecker interface {
	IsAdmin(ctx context.Context, key model.AccountKey) (bool, error)
}

// NewAdminGateMiddleware はHTTP Only Cookieからセッションを読み取り、
// 呼び出し元がサーバー管理者であることを検証するミドルウェアを返す。
// 検証を通過したリクエストのコンテキストに呼び出し元アカウントキーを注入する。
// 未認証・非管理者のリクエストには401 Unauthorizedを返し、
// 後続のハンドラーは一切実行しない。
func NewAdminGateMiddleware(sessions SessionFinder, checker AdminChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			session, err := sessions.FindSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			key := session.AccountKey()
			admin, err := checker.IsAdmin(r.Context(), key)
			if err != nil {
				slog.Error("failed to check admin flag",
					slog.String("key", key.String()),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !admin {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), accountKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountKeyFromContext はリクエストコンテキストから呼び出し元アカウントキーを取得する。
// 管理者ゲートを通過したリクエストでのみ有効。
func AccountKeyFromContext(ctx context.Context) (model.AccountKey, error) {
	key, ok := ctx.Value(accountKeyContextKey).(model.AccountKey)
	if !ok {
		return model.AccountKey{}, fmt.Errorf("account key not found in context")
	}
	return key, nil
}

// ContextWithAccountKey はコンテキストに呼び出し元アカウントキーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAccountKey(ctx context.Context, key model.AccountKey) context.Context {
	return context.WithValue(ctx, accountKeyContextKey, key)
}
