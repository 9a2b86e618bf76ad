package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lockgate/internal/metrics"
	"github.com/hitoshi/lockgate/internal/middleware"
)

// BasePath は管理サーフェスのマウントパス。
// ホストのプラグイン規約に合わせた固定プレフィックス。
const BasePath = "/plugins/license-expiry"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Metrics  middleware.StatusRecorder
	Gatherer prometheus.Gatherer

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	AdminChecker      middleware.AdminChecker
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 管理サーフェス
	Store     ExpiryStoreInterface
	Directory DirectoryLister
	Actuator  LockActuator
	Sweeper   SweepRunner
	Page      PageConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS →（ゲート配下のみ）CSRF → AdminGate → RateLimit
//
// health・whoami・metricsは認可ゲートの外に配置する。
// それ以外のすべてのルートは管理者ゲートを通過しない限り実行されない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	admin := NewAdminHandler(deps.Store, deps.Directory, deps.Actuator, deps.Sweeper)
	whoami := NewWhoamiHandler(deps.SessionFinder, deps.AdminChecker)
	page := NewPageHandler(deps.Page)

	// コンテナのヘルスチェック用（プレフィックスなし）
	r.Get("/health", admin.Health)

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route(BasePath, func(r chi.Router) {
		// --- 認可不要のルート ---
		r.Get("/health", admin.Health)
		r.Get("/whoami", whoami.Whoami)

		// --- 管理者ゲート配下のルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Use(middleware.NewAdminGateMiddleware(deps.SessionFinder, deps.AdminChecker))
			r.Use(deps.RateLimiter.AdminMiddleware())

			r.Get("/", page.AdminPage)
			r.Get("/api/status", admin.Status)
			r.Post("/api/set", admin.SetExpiry)
			r.Post("/api/extend", admin.Extend)
			r.Post("/api/lock", admin.Lock)
			r.Post("/api/run", admin.RunSweep)
		})
	})

	return r
}
