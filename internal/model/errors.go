// Package model はドメインモデルを定義する。
package model

import "net/http"

// APIError はサービス層からHTTP境界へ伝搬するエラーを表す。
// HTTPStatusが4xxの場合はクライアント起因（fail）、
// 5xxの場合はサーバー起因（error）としてレスポンスエンベロープに変換される。
// 永続化層や暗号プリミティブの生エラーは境界を越える前に必ずこの型に変換する。
type APIError struct {
	Code       string // エラーコード（ログ・デバッグ用）
	Message    string // クライアントに返すメッセージ
	HTTPStatus int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return e.Message
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeDuplicateUsername = "DUPLICATE_USERNAME"
	ErrCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	ErrCodePostNotFound      = "POST_NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証エラーを生成する。
// 証明の欠落・無効・期限切れ、および解決先アカウントの不在をすべて同一に扱う。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:       ErrCodeUnauthorized,
		Message:    "user unauthorized",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewInvalidCredentialError は認証情報不一致エラーを生成する。
// ユーザー不在とパスワード不一致でメッセージを分ける（原典仕様に合わせる）。
func NewInvalidCredentialError(message string) *APIError {
	return &APIError{
		Code:       ErrCodeInvalidCredential,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:       ErrCodeDuplicateUsername,
		Message:    "Username already exists",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:       ErrCodeDuplicateEmail,
		Message:    "Email is already in use",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:       ErrCodeValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:       ErrCodeUserNotFound,
		Message:    "User Not Found",
		HTTPStatus: http.StatusNotFound,
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:       ErrCodeProfileNotFound,
		Message:    "Profile Not Found",
		HTTPStatus: http.StatusNotFound,
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError() *APIError {
	return &APIError{
		Code:       ErrCodePostNotFound,
		Message:    "Post Not Found",
		HTTPStatus: http.StatusNotFound,
	}
}

// NewInternalError は内部サーバーエラーを生成する。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:       ErrCodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}
}
