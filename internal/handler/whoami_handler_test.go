package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/lockgate/internal/model"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findSessionFunc func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindSession(ctx context.Context, id string) (*model.Session, error) {
	return m.findSessionFunc(ctx, id)
}

// mockAdminChecker はmiddleware.AdminCheckerのモック実装。
type mockAdminChecker struct {
	isAdminFunc func(ctx context.Context, key model.AccountKey) (bool, error)
}

func (m *mockAdminChecker) IsAdmin(ctx context.Context, key model.AccountKey) (bool, error) {
	return m.isAdminFunc(ctx, key)
}

// TestWhoamiHandler_Authenticated は認証済みの呼び出し元の識別情報を検証する。
func TestWhoamiHandler_Authenticated(t *testing.T) {
	sessions := &mockSessionFinder{
		findSessionFunc: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "sess-1" {
				t.Errorf("session id = %q, want %q", id, "sess-1")
			}
			return &model.Session{ID: id, AccountDomain: "acme", AccountID: "alice"}, nil
		},
	}
	checker := &mockAdminChecker{
		isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
			return true, nil
		},
	}
	h := NewWhoamiHandler(sessions, checker)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	w := httptest.NewRecorder()
	h.Whoami(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp whoamiResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.User == nil || *resp.User != "alice" {
		t.Errorf("user = %v, want alice", resp.User)
	}
	if resp.Domain == nil || *resp.Domain != "acme" {
		t.Errorf("domain = %v, want acme", resp.Domain)
	}
	if !resp.ServerAdmin {
		t.Error("serveradmin = false, want true")
	}
}

// TestWhoamiHandler_Unauthenticated はCookieなしでもゼロ値レスポンスで
// 成功することを検証する。
func TestWhoamiHandler_Unauthenticated(t *testing.T) {
	sessions := &mockSessionFinder{
		findSessionFunc: func(ctx context.Context, id string) (*model.Session, error) {
			t.Error("FindSession should not be called without a cookie")
			return nil, nil
		},
	}
	checker := &mockAdminChecker{
		isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
			return false, nil
		},
	}
	h := NewWhoamiHandler(sessions, checker)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	h.Whoami(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp whoamiResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.User != nil || resp.Domain != nil || resp.ServerAdmin {
		t.Errorf("response = %+v, want zero values", resp)
	}
}

// TestWhoamiHandler_UnknownSession は無効なセッションをゼロ値として扱うことを検証する。
func TestWhoamiHandler_UnknownSession(t *testing.T) {
	sessions := &mockSessionFinder{
		findSessionFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, nil
		},
	}
	checker := &mockAdminChecker{
		isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
			return true, nil
		},
	}
	h := NewWhoamiHandler(sessions, checker)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired"})
	w := httptest.NewRecorder()
	h.Whoami(w, req)

	var resp whoamiResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.User != nil || resp.ServerAdmin {
		t.Errorf("response = %+v, want zero values", resp)
	}
}

// TestWhoamiHandler_AdminCheckError は管理者判定の失敗を非管理者として扱うことを検証する。
func TestWhoamiHandler_AdminCheckError(t *testing.T) {
	sessions := &mockSessionFinder{
		findSessionFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, AccountDomain: "acme", AccountID: "alice"}, nil
		},
	}
	checker := &mockAdminChecker{
		isAdminFunc: func(ctx context.Context, key model.AccountKey) (bool, error) {
			return false, errors.New("directory unavailable")
		},
	}
	h := NewWhoamiHandler(sessions, checker)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	w := httptest.NewRecorder()
	h.Whoami(w, req)

	var resp whoamiResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.User == nil || *resp.User != "alice" {
		t.Errorf("user = %v, want alice", resp.User)
	}
	if resp.ServerAdmin {
		t.Error("serveradmin = true, want false on check error")
	}
}
