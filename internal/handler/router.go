package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/metrics"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/middleware"
	"github.com/alfianimanuddin-design/figma-slack-bridge/internal/relay"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// 認可と中継
	OAuthService OAuthService
	RelayStore   RelayStore
	KeyGenerator relay.KeyGenerator
	AuthConfig   AuthHandlerConfig

	// ClickUp
	ClickUpService     ClickUpService
	FieldUpdateService FieldUpdateService

	// Slack
	SlackDirectory SlackDirectoryService
	WebhookService WebhookService

	// 計測
	Analytics AnalyticsService
	Gatherer  prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit
//
// /healthz と /metrics はレート制限の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.OAuthService, deps.RelayStore, deps.KeyGenerator, deps.AuthConfig, deps.Logger)
	taskHandler := NewTaskHandler(deps.ClickUpService, deps.FieldUpdateService, deps.Logger)
	slackHandler := NewSlackHandler(deps.SlackDirectory, deps.WebhookService, deps.Logger)
	analyticsHandler := NewAnalyticsHandler(deps.Analytics, deps.Logger)

	// --- 監視用ルート（レート制限の外） ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api/clickup", func(r chi.Router) {
			// OAuthフロー
			r.Get("/authorize", authHandler.Authorize)
			r.Get("/callback", authHandler.Callback)
			r.Post("/callback", authHandler.CallbackDirect)

			// 資格情報の中継
			r.Get("/token-exchange", authHandler.RetrieveToken)
			r.Post("/token-exchange", authHandler.StoreToken)

			// タスク操作
			r.Post("/workspaces", taskHandler.Workspaces)
			r.Post("/spaces", taskHandler.Spaces)
			r.Post("/tasks", taskHandler.Tasks)
			r.Post("/update-status", taskHandler.UpdateStatus)
			r.Post("/update-custom-fields", taskHandler.UpdateCustomFields)
		})

		r.Route("/api/slack", func(r chi.Router) {
			r.Post("/channels", slackHandler.Channels)
			r.Post("/users", slackHandler.Users)
			r.Post("/send", slackHandler.Send)
		})

		r.Post("/api/analytics", analyticsHandler.Track)
	})

	return r
}
