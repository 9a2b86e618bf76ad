// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/lockgate/internal/expiry"
	"github.com/hitoshi/lockgate/internal/middleware"
	"github.com/hitoshi/lockgate/internal/model"
)

// ExpiryStoreInterface は管理ハンドラーが必要とする有効期限ストアのインターフェース。
type ExpiryStoreInterface interface {
	Load() map[string]string
	Set(key, until string) error
}

// DirectoryLister はアカウントディレクトリの列挙インターフェース。
type DirectoryLister interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// LockActuator はロック状態変更のインターフェース。
type LockActuator interface {
	SetLocked(ctx context.Context, account model.Account, flag bool) bool
}

// SweepRunner はオンデマンドのスイープ実行インターフェース。
type SweepRunner interface {
	Run(ctx context.Context)
}

// AdminHandler は有効期限管理のHTTPハンドラー。
type AdminHandler struct {
	store    ExpiryStoreInterface
	dir      DirectoryLister
	actuator LockActuator
	sweeper  SweepRunner
	now      func() time.Time
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(store ExpiryStoreInterface, dir DirectoryLister, actuator LockActuator, sweeper SweepRunner) *AdminHandler {
	return &AdminHandler{
		store:    store,
		dir:      dir,
		actuator: actuator,
		sweeper:  sweeper,
		now:      time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える。テスト用。
func (h *AdminHandler) SetClock(now func() time.Time) {
	h.now = now
}

// accountView はアカウント一覧のレスポンス表現。
type accountView struct {
	Domain string `json:"domain"`
	UserID string `json:"userid"`
	Name   string `json:"name"`
	Locked bool   `json:"locked"`
}

// statusResponse はapi/statusのレスポンス。
type statusResponse struct {
	Users []accountView     `json:"users"`
	Map   map[string]string `json:"map"`
}

// Status はアカウント一覧と有効期限マッピングを返す。
// GET api/status
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.dir.ListAccounts(r.Context())
	if err != nil {
		slog.Error("failed to list accounts", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	users := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, accountView{
			Domain: a.Domain,
			UserID: a.ID,
			Name:   a.Name,
			Locked: a.Locked,
		})
	}

	writeJSON(w, statusResponse{Users: users, Map: h.store.Load()})
}

// setRequest はapi/setのリクエストボディ。
type setRequest struct {
	Key   string `json:"key"`
	Until string `json:"until"`
}

// SetExpiry はアカウントの有効期限を設定する。
// POST api/set {key, until}
// untilが空または解釈不能な値でも保存は行う（スイープ側で期限なしとして扱われる）。
func (h *AdminHandler) SetExpiry(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}
	if _, err := model.ParseAccountKey(req.Key); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidKeyError(req.Key))
		return
	}

	if err := h.store.Set(req.Key, req.Until); err != nil {
		// ストア書き込みの失敗は致命ではない。ログに残して処理を続ける
		slog.Error("failed to save expiry document",
			slog.String("key", req.Key),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, map[string]int{"ok": 1})
}

// extendRequest はapi/extendのリクエストボディ。
// daysは数値と文字列の両方を受け付ける（解釈不能な場合は0として扱う）。
type extendRequest struct {
	Key  string          `json:"key"`
	Days json.RawMessage `json:"days"`
}

// Extend はアカウントの有効期限を日数単位で延長する。
// POST api/extend {key, days}
// 既存値が解釈可能ならそれを基準に、未設定または解釈不能なら現在時刻を基準に
// days日を加算する。days=0は基準時刻をそのまま返す。
func (h *AdminHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}
	if _, err := model.ParseAccountKey(req.Key); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidKeyError(req.Key))
		return
	}

	days := parseDays(req.Days)

	base, ok := expiry.ParseInstant(h.store.Load()[req.Key])
	if !ok {
		base = h.now()
	}
	until := base.AddDate(0, 0, days).Format(time.RFC3339)

	if err := h.store.Set(req.Key, until); err != nil {
		slog.Error("failed to save expiry document",
			slog.String("key", req.Key),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, map[string]any{"ok": 1, "until": until})
}

// lockRequest はapi/lockのリクエストボディ。
type lockRequest struct {
	Key  string `json:"key"`
	Flag bool   `json:"flag"`
}

// Lock はアカウントのロック状態を明示的に変更する。
// POST api/lock {key, flag}
// 対象アカウントがディレクトリに存在しない場合は {ok:0, err:"user-not-found"} を返し、
// ロック操作は行わない。
func (h *AdminHandler) Lock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	key, err := model.ParseAccountKey(req.Key)
	if err != nil {
		writeJSON(w, map[string]any{"ok": 0, "err": "user-not-found"})
		return
	}

	accounts, err := h.dir.ListAccounts(r.Context())
	if err != nil {
		slog.Error("failed to list accounts", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	for _, a := range accounts {
		if a.Domain == key.Domain && a.ID == key.UserID {
			if !h.actuator.SetLocked(r.Context(), a, req.Flag) {
				writeJSON(w, map[string]any{"ok": 0, "err": "lock-failed"})
				return
			}
			writeJSON(w, map[string]int{"ok": 1})
			return
		}
	}

	writeJSON(w, map[string]any{"ok": 0, "err": "user-not-found"})
}

// RunSweep は即時スイープを実行する。
// POST api/run
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Run(r.Context())
	writeJSON(w, map[string]int{"ok": 1})
}

// Health はヘルスチェックに応答する。
// GET health
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

// parseDays はdaysフィールドを整数として解釈する。
// 数値・数値文字列の両方を受け付け、解釈できない場合は0を返す。
func parseDays(raw json.RawMessage) int {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
