package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthStrategy は認証証明の発行方式を表す。
type AuthStrategy string

const (
	// AuthStrategyToken は署名付きステートレストークン（JWT）方式。
	AuthStrategyToken AuthStrategy = "token"
	// AuthStrategySession はRedis上のサーバーサイドセッション方式。
	AuthStrategySession AuthStrategy = "session"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 署名シークレットやセッションストア接続先もここに集約し、
// グローバル可変状態としては持たない。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	AuthStrategy AuthStrategy
	JWTSecret    string
	JWTExpiresIn time.Duration // トークンの有効期間

	// Session（セッション戦略のみ使用）
	RedisAddr     string
	SessionMaxAge int // スライディング有効期間（秒）

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// JWT_SECRETはトークン戦略でのみ必須となる。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	strategy := getEnvString("AUTH_STRATEGY", string(AuthStrategyToken))
	switch AuthStrategy(strategy) {
	case AuthStrategyToken, AuthStrategySession:
		cfg.AuthStrategy = AuthStrategy(strategy)
	default:
		return nil, fmt.Errorf("invalid AUTH_STRATEGY: %q (must be %q or %q)",
			strategy, AuthStrategyToken, AuthStrategySession)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.AuthStrategy == AuthStrategyToken && cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTExpiresIn = time.Duration(getEnvInt("JWT_EXPIRES_IN", 60)) * time.Minute
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 600)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8000")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
