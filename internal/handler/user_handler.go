package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/North004/Server/internal/middleware"
	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, username string) (*user.ProfileInfo, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// UserHandler はユーザー関連のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// profileResponse は公開プロフィールのレスポンス表現。
type profileResponse struct {
	Username  string    `json:"username"`
	Photo     string    `json:"photo"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
}

// userListItemResponse はユーザー一覧のレスポンス表現。
type userListItemResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GetProfile はユーザー名で公開プロフィールを返す。
// GET /user/{username}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	info, err := h.service.GetProfile(r.Context(), username)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Profile retrieved successfully", profileResponse{
		Username:  info.Username,
		Photo:     info.Photo,
		Bio:       info.Bio,
		CreatedAt: info.CreatedAt,
	})
}

// List は全ユーザーの一覧を返す。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	resp := make([]userListItemResponse, len(users))
	for i, u := range users {
		resp[i] = userListItemResponse{
			ID:       u.ID,
			Username: u.Username,
		}
	}

	middleware.WriteSuccess(w, http.StatusOK, "Users retrieved successfully", resp)
}
