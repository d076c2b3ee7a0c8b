package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidProof は提示された証明が欠落・改ざん・期限切れ・未知の
// いずれかであることを示す。ミドルウェアはこのエラーを401に変換する。
// ストアI/O障害はこのエラーでラップせず通常のエラーとして返し、
// 500に変換される。
var ErrInvalidProof = errors.New("invalid identity proof")

// IdentityIssuer はログイン成功時の証明発行と、リクエスト時の証明解決を提供する。
// トークン戦略とセッション戦略の2実装があり、デプロイごとに
// 起動時設定でどちらか一方だけが選択される。両方を同時に使うことはない。
type IdentityIssuer interface {
	// Issue は検証済みユーザーIDに対する証明を発行する。
	// 戻り値はCookieに格納する値と、Cookieのmax-age（秒）。
	Issue(ctx context.Context, userID string) (proof string, maxAge int, err error)

	// Resolve は証明をユーザーIDに解決する。
	// 証明が無効な場合はErrInvalidProofを、ストア障害の場合は
	// それ以外のエラーを返す。
	Resolve(ctx context.Context, proof string) (userID string, err error)

	// Invalidate はログアウト時に証明を失効させる。
	// トークン戦略ではサーバー側に失効手段がないため何もしない。
	Invalidate(ctx context.Context, proof string) error

	// CookieName は証明を運ぶCookieの名前を返す。
	CookieName() string
}

// tokenCookieName はトークン戦略のCookie名。
const tokenCookieName = "token"

// TokenIssuer は署名付きステートレストークン（JWT HS256）による証明発行。
// クレームは {sub, iat, exp} のみで、サーバー側には一切状態を持たない。
// 埋め込まれたexpまでは「ログアウト」後もトークンは有効なまま残る
// （サーバーサイドの失効リストは存在しない）。
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time // テストで差し替え可能にする
}

// NewTokenIssuer はTokenIssuerを生成する。
// secretは発行プロセスと検証プロセスだけが共有する対称鍵。
func NewTokenIssuer(secret []byte, lifetime time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   secret,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Issue は{sub, iat, exp}を署名したJWTを発行する。
func (i *TokenIssuer) Issue(ctx context.Context, userID string) (string, int, error) {
	now := i.now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, int(i.lifetime.Seconds()), nil
}

// Resolve は署名と有効期限を検証し、subをユーザーIDとして返す。
// 署名不正・期限切れ・不正形式はすべてErrInvalidProofに畳み込む。
func (i *TokenIssuer) Resolve(ctx context.Context, proof string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(proof, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidProof
	}
	if claims.Subject == "" {
		return "", ErrInvalidProof
	}

	return claims.Subject, nil
}

// Invalidate はトークン戦略では何もしない。
// ログアウトはCookieの即時失効（max-age負値での再発行）のみで実現され、
// 発行済みトークン自体はexpまで有効なまま残る。
func (i *TokenIssuer) Invalidate(ctx context.Context, proof string) error {
	return nil
}

// CookieName はトークン戦略のCookie名を返す。
func (i *TokenIssuer) CookieName() string {
	return tokenCookieName
}

// compile-time interface check
var _ IdentityIssuer = (*TokenIssuer)(nil)
