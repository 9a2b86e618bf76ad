package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/lockgate/internal/model"
)

// mockSessionFinder はSessionFinderのモック実装。
type mockSessionFinder struct {
	findSessionFunc func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindSession(ctx context.Context, id string) (*model.Session, error) {
	return m.findSessionFunc(ctx, id)
}

// mockAdminChecker はAdminCheckerのモック実装。
type mockAdminChecker struct {
	isAdminFunc func(ctx context.Context, key model.AccountKey) (bool, error)
}

func (m *mockAdminChecker) IsAdmin(ctx context.Context, key model.AccountKey) (bool, error) {
	return m.isAdminFunc(ctx, key)
}

func adminSession(domain, id string) *mockSessionFinder {
	return &mockSessionFinder{
		findSessionFunc: func(ctx context.Context, sid string) (*model.Session, error) {
			return &model.Session{ID: sid, AccountDomain: domain, AccountID: id}, nil
		},
	}
}

// TestAdminGateMiddleware_Authorized は管理者リクエストの通過と
// コンテキストへのキー注入を検証する。
func TestAdminGateMiddleware_Authorized(t *testing.T) {
	checker := &mockAdminChecker{
		isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
			return true, nil
		},
	}

	var gotKey model.AccountKey
	handler := NewAdminGateMiddleware(adminSession("acme", "root"), checker)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := AccountKeyFromContext(r.Context())
			if err != nil {
				t.Errorf("AccountKeyFromContext returned error: %v", err)
			}
			gotKey = key
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotKey.String() != "acme/root" {
		t.Errorf("injected key = %q, want %q", gotKey.String(), "acme/root")
	}
}

// TestAdminGateMiddleware_Rejected は各種の不正なリクエストが401で拒否され、
// 後続ハンドラーが実行されないことを検証する。
func TestAdminGateMiddleware_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		sessions SessionFinder
		checker  AdminChecker
		cookie   *http.Cookie
	}{
		{
			name:     "Cookieなし",
			sessions: adminSession("acme", "root"),
			checker: &mockAdminChecker{isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
				return true, nil
			}},
			cookie: nil,
		},
		{
			name: "セッションが存在しない",
			sessions: &mockSessionFinder{findSessionFunc: func(ctx context.Context, id string) (*model.Session, error) {
				return nil, nil
			}},
			checker: &mockAdminChecker{isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
				return true, nil
			}},
			cookie: &http.Cookie{Name: "session_id", Value: "expired"},
		},
		{
			name: "セッション検索の失敗",
			sessions: &mockSessionFinder{findSessionFunc: func(ctx context.Context, id string) (*model.Session, error) {
				return nil, errors.New("directory unavailable")
			}},
			checker: &mockAdminChecker{isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
				return true, nil
			}},
			cookie: &http.Cookie{Name: "session_id", Value: "sess-1"},
		},
		{
			name:     "非管理者",
			sessions: adminSession("acme", "alice"),
			checker: &mockAdminChecker{isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
				return false, nil
			}},
			cookie: &http.Cookie{Name: "session_id", Value: "sess-1"},
		},
		{
			name:     "管理者判定の失敗",
			sessions: adminSession("acme", "root"),
			checker: &mockAdminChecker{isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
				return false, errors.New("directory unavailable")
			}},
			cookie: &http.Cookie{Name: "session_id", Value: "sess-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewAdminGateMiddleware(tt.sessions, tt.checker)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					called = true
				}),
			)

			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if called {
				t.Error("next handler should not run")
			}
		})
	}
}

// TestAccountKeyFromContext_Missing はキー未注入のコンテキストでエラーを返すことを検証する。
func TestAccountKeyFromContext_Missing(t *testing.T) {
	if _, err := AccountKeyFromContext(context.Background()); err == nil {
		t.Error("expected error for context without account key")
	}
}

// TestContextWithAccountKey は注入と取得の往復を検証する。
func TestContextWithAccountKey(t *testing.T) {
	key := model.AccountKey{Domain: "acme", UserID: "root"}
	ctx := ContextWithAccountKey(context.Background(), key)

	got, err := AccountKeyFromContext(ctx)
	if err != nil {
		t.Fatalf("AccountKeyFromContext returned error: %v", err)
	}
	if got != key {
		t.Errorf("got %+v, want %+v", got, key)
	}
}
