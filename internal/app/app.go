package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/North004/Server/internal/auth"
	"github.com/North004/Server/internal/config"
	"github.com/North004/Server/internal/database"
	"github.com/North004/Server/internal/handler"
	"github.com/North004/Server/internal/logger"
	"github.com/North004/Server/internal/metrics"
	"github.com/North004/Server/internal/middleware"
	"github.com/North004/Server/internal/post"
	"github.com/North004/Server/internal/repository"
	"github.com/North004/Server/internal/security"
	"github.com/North004/Server/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("auth_strategy", string(cfg.AuthStrategy)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newIdentityIssuer は認証戦略に応じたIdentityIssuerを構築する。
// トークン戦略は署名付きJWT、セッション戦略はRedis上の
// サーバーサイドセッションを使用する。
func newIdentityIssuer(cfg *config.Config) (auth.IdentityIssuer, error) {
	switch cfg.AuthStrategy {
	case config.AuthStrategySession:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := repository.NewRedisSessionStore(client)
		ttl := time.Duration(cfg.SessionMaxAge) * time.Second
		return auth.NewSessionIssuer(store, ttl), nil
	default:
		return auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTExpiresIn), nil
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	reactionRepo := repository.NewPostgresReactionRepo(db)

	// 3. 認証証明発行者の構築（戦略により切り替え）
	issuer, err := newIdentityIssuer(cfg)
	if err != nil {
		return err
	}

	// 4. ドメインサービスの初期化
	hasher := auth.NewPasswordHasher(auth.DefaultArgon2Params())
	authService := auth.NewService(userRepo, hasher, issuer)

	sanitizer := security.NewContentSanitizer()
	postService := post.NewService(postRepo, reactionRepo, sanitizer)
	userService := user.NewService(userRepo, profileRepo)

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. レート制限の構築（configのreq/min単位をreq/secに変換）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		AuthRate:        rate.Limit(float64(cfg.RateLimitAuth) / 60.0),
		AuthBurst:       cfg.RateLimitAuth,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Issuer:            issuer,
		UserRepo:          userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthStrategy: cfg.AuthStrategy,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},
		PostService: postService,
		UserService: userService,

		Metrics:  collector,
		Gatherer: registry,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
