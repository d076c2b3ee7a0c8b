package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/North004/Server/internal/auth"
	"github.com/North004/Server/internal/config"
	"github.com/North004/Server/internal/metrics"
	"github.com/North004/Server/internal/middleware"
	"github.com/North004/Server/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Issuer            auth.IdentityIssuer
	UserRepo          repository.UserRepository
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証戦略。ログアウトルートの配置が変わる。
	AuthStrategy config.AuthStrategy

	// サービス
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	PostService PostServiceInterface
	UserService UserServiceInterface

	// メトリクス
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//	保護ルートはさらに Auth → RateLimit(General)
//
// 認証エンドポイント（register/login）は未認証のため、送信元IP単位の
// 専用レート制限のみを適用する。
// ログアウトはセッション戦略では保護ルート（有効なセッションの提示が必要）、
// トークン戦略では公開ルート（サーバー側に失効手段がないため）に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Metrics)
	postHandler := NewPostHandler(deps.PostService, deps.Metrics)
	userHandler := NewUserHandler(deps.UserService)

	authMiddleware := middleware.NewAuthMiddleware(deps.Issuer, deps.UserRepo)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.AuthEndpointMiddleware()).Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.AuthEndpointMiddleware()).Post("/login", authHandler.Login)

		if deps.AuthStrategy == config.AuthStrategyToken {
			r.Post("/logout", authHandler.Logout)
		}
	})

	// 投稿一覧は未認証でも閲覧できる
	r.Get("/posts", postHandler.List)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusスクレイプ
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/is_logged_in", authHandler.IsLoggedIn)

		if deps.AuthStrategy == config.AuthStrategySession {
			r.Post("/auth/logout", authHandler.Logout)
		}

		// 投稿管理
		r.Route("/post", func(r chi.Router) {
			r.Post("/", postHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", postHandler.Delete)
				r.Post("/react", postHandler.React)
			})
		})

		// ユーザー管理
		r.Get("/users", userHandler.List)
		r.Get("/user/{username}", userHandler.GetProfile)
	})

	return r
}
