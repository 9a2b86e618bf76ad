package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/lockgate/internal/middleware"
)

// whoamiResponse はwhoamiエンドポイントのレスポンス。
// 未認証の場合は各フィールドがゼロ値となる。
type whoamiResponse struct {
	User        *string `json:"user"`
	Domain      *string `json:"domain"`
	ServerAdmin bool    `json:"serveradmin"`
}

// WhoamiHandler は呼び出し元の識別情報を返す診断用ハンドラー。
// 認可ゲートの外に配置され、管理者権限の確認に使用できる。
type WhoamiHandler struct {
	sessions middleware.SessionFinder
	checker  middleware.AdminChecker
}

// NewWhoamiHandler はWhoamiHandlerを生成する。
func NewWhoamiHandler(sessions middleware.SessionFinder, checker middleware.AdminChecker) *WhoamiHandler {
	return &WhoamiHandler{sessions: sessions, checker: checker}
}

// Whoami は呼び出し元のアカウント識別子と管理者フラグを返す。
// GET whoami
func (h *WhoamiHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	resp := whoamiResponse{}

	cookie, err := r.Cookie("session_id")
	if err == nil && cookie.Value != "" {
		session, err := h.sessions.FindSession(r.Context(), cookie.Value)
		if err != nil {
			slog.Error("failed to find session", slog.String("error", err.Error()))
		} else if session != nil {
			user := session.AccountID
			domain := session.AccountDomain
			resp.User = &user
			resp.Domain = &domain

			admin, err := h.checker.IsAdmin(r.Context(), session.AccountKey())
			if err != nil {
				slog.Error("failed to check admin flag", slog.String("error", err.Error()))
			}
			resp.ServerAdmin = admin
		}
	}

	writeJSON(w, resp)
}
