package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// sessionCookieName はセッション戦略のCookie名。
// トークン戦略の"token"とは混在させない。
const sessionCookieName = "session_id"

// SessionStore はセッション属性の共有ストアのインターフェース。
// 実装はRedis（repository.RedisSessionStore）。
// Getはキー不在の場合に(nil, nil)を返す。
type SessionStore interface {
	Get(ctx context.Context, key string) (map[string]string, error)
	Set(ctx context.Context, key string, attrs map[string]string, ttl time.Duration) error
	// Touch はキーの有効期限をttl後に延長する。キー不在の場合は何もしない。
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// sessionUserIDAttr はセッション属性セット内のユーザーIDキー。
const sessionUserIDAttr = "user_id"

// SessionIssuer は共有ストア上のサーバーサイドセッションによる証明発行。
// Cookieには不透明なセッションキーのみを格納し、属性はストア側に持つ。
// 有効期限はスライディング方式で、Resolveのたびに延長される。
// ログアウトはストアからのハード削除で、即時失効となる
// （トークン戦略より強い失効セマンティクス）。
type SessionIssuer struct {
	store SessionStore
	ttl   time.Duration
}

// NewSessionIssuer はSessionIssuerを生成する。
func NewSessionIssuer(store SessionStore, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		store: store,
		ttl:   ttl,
	}
}

// Issue は暗号的に安全な不透明キーを割り当て、
// {user_id}をTTL付きでストアに保存する。
func (i *SessionIssuer) Issue(ctx context.Context, userID string) (string, int, error) {
	key, err := generateSessionKey()
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate session key: %w", err)
	}

	attrs := map[string]string{sessionUserIDAttr: userID}
	if err := i.store.Set(ctx, key, attrs, i.ttl); err != nil {
		return "", 0, fmt.Errorf("failed to save session: %w", err)
	}

	return key, int(i.ttl.Seconds()), nil
}

// Resolve はセッションキーをストアで引き、ユーザーIDを返す。
// ヒット時はTTLを延長する（スライディング有効期限）。
// キー不在はErrInvalidProof、ストア障害はそのままのエラーを返す。
func (i *SessionIssuer) Resolve(ctx context.Context, proof string) (string, error) {
	attrs, err := i.store.Get(ctx, proof)
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	if attrs == nil {
		return "", ErrInvalidProof
	}

	userID := attrs[sessionUserIDAttr]
	if userID == "" {
		return "", ErrInvalidProof
	}

	// アクセスのたびに有効期限を延長する。延長の失敗は認可の成否に影響させない。
	_ = i.store.Touch(ctx, proof, i.ttl)

	return userID, nil
}

// Invalidate はセッションレコードをハード削除する。
func (i *SessionIssuer) Invalidate(ctx context.Context, proof string) error {
	if err := i.store.Delete(ctx, proof); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CookieName はセッション戦略のCookie名を返す。
func (i *SessionIssuer) CookieName() string {
	return sessionCookieName
}

// generateSessionKey は暗号的に安全なセッションキーを生成する。
func generateSessionKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ IdentityIssuer = (*SessionIssuer)(nil)
