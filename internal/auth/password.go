// Package auth は認証のドメインロジックを提供する。
// パスワードハッシュ、証明（トークン/セッション）の発行と解決、
// 登録・ログインのビジネスロジックを含む。
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params はargon2idのチューニングパラメータを保持する。
type Argon2Params struct {
	Memory      uint32 // KiB単位
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params は本番想定のデフォルトパラメータを返す。
// 64MiB、3パス。
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordHasher はパスワードのハッシュ化と検証を提供する。
// ハッシュはPHC形式（$argon2id$v=19$m=...,t=...,p=...$salt$digest）で
// エンコードされ、パラメータとソルトを自己記述する。
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher はPasswordHasherを生成する。
func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash はパスワードをargon2idでハッシュ化し、PHC形式の文字列を返す。
// 呼び出しごとに新しいランダムソルトを生成するため、
// 同一パスワードでも出力は毎回異なる。
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt,
		h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify は平文パスワードをエンコード済みハッシュと照合する。
// エンコード文字列に埋め込まれたパラメータとソルトでダイジェストを再計算し、
// 定数時間で比較する。
// 保存ハッシュが不正な形式の場合もfalseを返す。パース失敗を区別可能な
// エラーとして返すと、どのアカウントのレコードが壊れているかが
// 外部から観測できてしまうため、「認証情報不一致」に畳み込む。
func (h *PasswordHasher) Verify(password, encoded string) bool {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt,
		params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(computed, key) == 1
}

// decodeHash はPHC形式のargon2idハッシュ文字列をパースする。
func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return params, nil, nil, fmt.Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("invalid version segment: %w", err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("incompatible argon2 version: %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, fmt.Errorf("invalid params segment: %w", err)
	}
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return params, nil, nil, fmt.Errorf("invalid argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("invalid salt encoding: %w", err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("invalid digest encoding: %w", err)
	}
	if len(key) == 0 {
		return params, nil, nil, fmt.Errorf("empty digest")
	}

	return params, salt, key, nil
}
