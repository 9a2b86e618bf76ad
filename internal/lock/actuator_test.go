package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/lockgate/internal/model"
)

// mockToggler はTogglerのモック実装。
type mockToggler struct {
	setAccountLockedFunc func(ctx context.Context, key model.AccountKey, locked bool) error
	calls                int
}

func (m *mockToggler) SetAccountLocked(ctx context.Context, key model.AccountKey, locked bool) error {
	m.calls++
	return m.setAccountLockedFunc(ctx, key, locked)
}

// mockWriter はRecordWriterのモック実装。
type mockWriter struct {
	writeAccountFunc func(ctx context.Context, account model.Account) error
	written          []model.Account
}

func (m *mockWriter) WriteAccount(ctx context.Context, account model.Account) error {
	m.written = append(m.written, account)
	if m.writeAccountFunc != nil {
		return m.writeAccountFunc(ctx, account)
	}
	return nil
}

// mockDisconnector はSessionDisconnectorのモック実装。
type mockDisconnector struct {
	disconnectFunc func(ctx context.Context, key model.AccountKey) error
	calls          int
}

func (m *mockDisconnector) DisconnectSessions(ctx context.Context, key model.AccountKey) error {
	m.calls++
	if m.disconnectFunc != nil {
		return m.disconnectFunc(ctx, key)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestActuator_SetLocked_PrimaryPath は主経路が成功する場合の挙動を検証する。
func TestActuator_SetLocked_PrimaryPath(t *testing.T) {
	toggler := &mockToggler{
		setAccountLockedFunc: func(ctx context.Context, key model.AccountKey, locked bool) error {
			if key.String() != "acme/alice" {
				t.Errorf("key = %q, want %q", key.String(), "acme/alice")
			}
			if !locked {
				t.Error("locked = false, want true")
			}
			return nil
		},
	}
	writer := &mockWriter{}
	disc := &mockDisconnector{}

	a := NewActuator(toggler, writer, disc, testLogger())
	account := model.Account{ID: "alice", Domain: "acme"}

	if !a.SetLocked(context.Background(), account, true) {
		t.Fatal("SetLocked = false, want true")
	}
	if toggler.calls != 1 {
		t.Errorf("toggler calls = %d, want 1", toggler.calls)
	}
	if len(writer.written) != 0 {
		t.Error("fallback path should not run when primary succeeds")
	}
	if disc.calls != 1 {
		t.Errorf("disconnect calls = %d, want 1", disc.calls)
	}
}

// TestActuator_SetLocked_FallbackPath は主経路失敗時のフォールバックを検証する。
func TestActuator_SetLocked_FallbackPath(t *testing.T) {
	toggler := &mockToggler{
		setAccountLockedFunc: func(ctx context.Context, key model.AccountKey, locked bool) error {
			return errors.New("native toggle unavailable")
		},
	}
	writer := &mockWriter{}
	disc := &mockDisconnector{}

	a := NewActuator(toggler, writer, disc, testLogger())
	account := model.Account{ID: "alice", Domain: "acme", Name: "Alice"}

	if !a.SetLocked(context.Background(), account, true) {
		t.Fatal("SetLocked = false, want true")
	}
	if len(writer.written) != 1 {
		t.Fatalf("written = %d accounts, want 1", len(writer.written))
	}
	got := writer.written[0]
	if !got.Locked {
		t.Error("written.Locked = false, want true")
	}
	if got.SiteAdminLocked {
		t.Error("written.SiteAdminLocked = true for non-admin account")
	}
	if got.Name != "Alice" {
		t.Errorf("written.Name = %q, other fields must be preserved", got.Name)
	}
	if disc.calls != 1 {
		t.Errorf("disconnect calls = %d, want 1", disc.calls)
	}
}

// TestActuator_SetLocked_FallbackSyncsAdminFlag はフォールバック経路が
// 管理権限アカウントの入れ子フラグも同期することを検証する。
func TestActuator_SetLocked_FallbackSyncsAdminFlag(t *testing.T) {
	writer := &mockWriter{}
	a := NewActuator(nil, writer, nil, testLogger())
	account := model.Account{ID: "root", Domain: "acme", ServerAdmin: true}

	if !a.SetLocked(context.Background(), account, true) {
		t.Fatal("SetLocked = false, want true")
	}
	got := writer.written[0]
	if !got.Locked || !got.SiteAdminLocked {
		t.Errorf("written = Locked:%v SiteAdminLocked:%v, want both true", got.Locked, got.SiteAdminLocked)
	}

	// 解除時は両方ともfalseへ
	if !a.SetLocked(context.Background(), got, false) {
		t.Fatal("SetLocked(false) = false, want true")
	}
	got = writer.written[1]
	if got.Locked || got.SiteAdminLocked {
		t.Errorf("written = Locked:%v SiteAdminLocked:%v, want both false", got.Locked, got.SiteAdminLocked)
	}
}

// TestActuator_SetLocked_BothPathsFail は両経路が失敗した場合にfalseを返すことを検証する。
func TestActuator_SetLocked_BothPathsFail(t *testing.T) {
	toggler := &mockToggler{
		setAccountLockedFunc: func(ctx context.Context, key model.AccountKey, locked bool) error {
			return errors.New("primary failed")
		},
	}
	writer := &mockWriter{
		writeAccountFunc: func(ctx context.Context, account model.Account) error {
			return errors.New("fallback failed")
		},
	}
	disc := &mockDisconnector{}

	a := NewActuator(toggler, writer, disc, testLogger())

	if a.SetLocked(context.Background(), model.Account{ID: "alice", Domain: "acme"}, true) {
		t.Fatal("SetLocked = true, want false")
	}
	if disc.calls != 0 {
		t.Error("disconnect should not run when both paths fail")
	}
}

// TestActuator_SetLocked_NoPathsAvailable は経路が一切ない場合にfalseを返すことを検証する。
func TestActuator_SetLocked_NoPathsAvailable(t *testing.T) {
	a := NewActuator(nil, nil, nil, testLogger())

	if a.SetLocked(context.Background(), model.Account{ID: "alice", Domain: "acme"}, true) {
		t.Fatal("SetLocked = true, want false")
	}
}

// TestActuator_SetLocked_DisconnectFailureIgnored はセッション切断の失敗が
// 操作全体の結果に影響しないことを検証する。
func TestActuator_SetLocked_DisconnectFailureIgnored(t *testing.T) {
	toggler := &mockToggler{
		setAccountLockedFunc: func(ctx context.Context, key model.AccountKey, locked bool) error {
			return nil
		},
	}
	disc := &mockDisconnector{
		disconnectFunc: func(ctx context.Context, key model.AccountKey) error {
			return errors.New("disconnect failed")
		},
	}

	a := NewActuator(toggler, nil, disc, testLogger())

	if !a.SetLocked(context.Background(), model.Account{ID: "alice", Domain: "acme"}, true) {
		t.Fatal("SetLocked = false, want true")
	}
	if disc.calls != 1 {
		t.Errorf("disconnect calls = %d, want 1", disc.calls)
	}
}
