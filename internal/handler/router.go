package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/examsched/internal/metrics"
	"github.com/hitoshi/examsched/internal/middleware"
)

// Pinger はヘルスチェックに必要なデータベース疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          middleware.PrincipalResolver
	Collector         metrics.MetricsCollector
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	LocationService     LocationServiceInterface
	PractitionerService PractitionerServiceInterface
	PermissionService   PermissionServiceInterface
	EventService        EventServiceInterface
	AuditService        AuditServiceInterface

	// 運用
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//	→（保護ルートのみ）CSRF → Principal → RateLimit(General)
//
// ログイン・ヘルスチェック・メトリクスはプリンシパル解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	locationHandler := NewLocationHandler(deps.LocationService)
	practitionerHandler := NewPractitionerHandler(deps.PractitionerService)
	permissionHandler := NewPermissionHandler(deps.PermissionService)
	eventHandler := NewEventHandler(deps.EventService)
	auditHandler := NewAuditHandler(deps.AuditService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		// /auth/me はプリンシパル解決が必要
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewPrincipalMiddleware(deps.Resolver, deps.Collector))
			r.Get("/me", authHandler.Me)
		})
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Principal → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewPrincipalMiddleware(deps.Resolver, deps.Collector))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 検査地管理
		r.Route("/api/locations", func(r chi.Router) {
			r.Get("/", locationHandler.ListLocations)
			r.Post("/", locationHandler.CreateLocation)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", locationHandler.RenameLocation)
				r.Put("/active", locationHandler.SetActive)
				r.Delete("/", locationHandler.DeleteLocation)
			})
		})

		// 実施者管理
		r.Route("/api/practitioners", func(r chi.Router) {
			r.Get("/", practitionerHandler.ListPractitioners)
			r.Post("/", practitionerHandler.CreatePractitioner)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", practitionerHandler.DeletePractitioner)
				r.Post("/reset-password", practitionerHandler.ResetPassword)
			})
		})

		// 許可マトリクス
		r.Route("/api/permissions/{practitionerID}", func(r chi.Router) {
			r.Get("/", permissionHandler.ListGrants)
			r.Put("/", permissionHandler.ReplaceGrants)
			r.Post("/toggle", permissionHandler.ToggleGrant)
		})

		// カレンダーイベント
		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", eventHandler.ListEvents)
			r.Post("/", eventHandler.CreateEvent)
			r.Get("/export", eventHandler.ExportMonth)
			r.Delete("/{id}", eventHandler.DeleteEvent)
		})

		// 監査ログ
		r.Get("/api/audit", auditHandler.ListRecent)
	})

	return r
}

// NewHealthHandler はデータベース疎通を含むヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"reason": "database unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
