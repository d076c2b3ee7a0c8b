package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	AuthRate        rate.Limit    // 認証エンドポイント（login/register）のレート（req/sec）。10/60
	AuthBurst       int           // 認証エンドポイントのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般は認証済みユーザーごとに120 req/min、
// 認証エンドポイントはパスワード総当たり対策として送信元IPごとに10 req/min。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		AuthRate:        rate.Limit(10.0 / 60.0), // ~0.167 req/sec
		AuthBurst:       10,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントごとのレート制限を管理する。
// 認証済みユーザーID単位のAPI全般制限と、送信元IP単位の
// 認証エンドポイント制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*clientLimiter

	authMu       sync.RWMutex
	authLimiters map[string]*clientLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*clientLimiter),
		authLimiters:    make(map[string]*clientLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストに認証済みユーザーが含まれている必要がある
// （認証ミドルウェアの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				WriteUnauthorized(w)
				return
			}

			limiter := rl.getOrCreateLimiter(&rl.generalMu, rl.generalLimiters, user.ID, rl.config.GeneralRate, rl.config.GeneralBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", user.ID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthEndpointMiddleware は認証エンドポイント専用のレート制限ミドルウェアを返す。
// 未認証リクエストが対象のため、送信元IP単位で制限する。
func (rl *RateLimiter) AuthEndpointMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			limiter := rl.getOrCreateLimiter(&rl.authMu, rl.authLimiters, ip, rl.config.AuthRate, rl.config.AuthBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.AuthRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "auth"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// AuthLimiterCount は現在管理されている認証エンドポイントリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) AuthLimiterCount() int {
	rl.authMu.RLock()
	defer rl.authMu.RUnlock()
	return len(rl.authLimiters)
}

// getOrCreateLimiter は指定キーのリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(mu *sync.RWMutex, limiters map[string]*clientLimiter, key string, r rate.Limit, burst int) *rate.Limiter {
	mu.RLock()
	cl, exists := limiters[key]
	mu.RUnlock()

	if exists {
		mu.Lock()
		cl.lastAccess = time.Now()
		mu.Unlock()
		return cl.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// ダブルチェック
	if cl, exists := limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(r, burst)
	limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for key, cl := range rl.generalLimiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.generalLimiters, key)
		}
	}
	rl.generalMu.Unlock()

	rl.authMu.Lock()
	for key, cl := range rl.authLimiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.authLimiters, key)
		}
	}
	rl.authMu.Unlock()
}

// clientIP はリクエストの送信元IPを返す。ポート部分は取り除く。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(GeneralResponse{
		Status:  "fail",
		Message: "Too many requests. Please try again later.",
		Data:    nil,
	})
}
