// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/North004/Server/internal/auth"
	"github.com/North004/Server/internal/metrics"
	"github.com/North004/Server/internal/middleware"
	"github.com/North004/Server/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, input auth.RegisterInput) (*model.User, error)
	Login(ctx context.Context, input auth.LoginInput) (*model.User, string, int, error)
	Logout(ctx context.Context, proof string) error
	Issuer() auth.IdentityIssuer
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// userResponse はクライアントに返すユーザー表現。
// パスワードハッシュは含まない。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Register は新規ユーザーを登録する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	h.metrics.RecordRegistration()

	middleware.WriteSuccess(w, http.StatusCreated, "User registered successfully", userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

// Login は認証情報を検証し、証明をHTTP Only Cookieで発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, proof, maxAge, err := h.service.Login(r.Context(), auth.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatus < 500 {
			h.metrics.RecordLoginFailure()
		}
		middleware.HandleServiceError(w, r, err)
		return
	}

	// 証明はHTTP Only Cookieのみで運ぶ。レスポンスボディには含めない。
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Issuer().CookieName(),
		Value:    proof,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLoginSuccess()

	middleware.WriteSuccess(w, http.StatusOK, "Login successful", userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

// Logout は証明を失効させ、Cookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookieName := h.service.Issuer().CookieName()

	cookie, err := r.Cookie(cookieName)
	if err == nil && cookie.Value != "" {
		// 失効に失敗してもCookieはクリアする
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			middleware.HandleServiceError(w, r, logoutErr)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	middleware.WriteSuccess(w, http.StatusOK, "Logout successful", nil)
}

// IsLoggedIn は現在のリクエストが認証済みであることを確認する。
// 認証ミドルウェアの背後に置かれるため、証明の欠落・無効・削除済み
// アカウントはミドルウェアが401で応答する。
// GET /auth/is_logged_in
func (h *AuthHandler) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserFromContext(r.Context()); err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "User is logged in", map[string]bool{
		"logged_in": true,
	})
}
