package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/North004/Server/internal/metrics"
	"github.com/North004/Server/internal/middleware"
	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, userID string, input post.CreateInput) (*model.Post, error)
	ListPosts(ctx context.Context) ([]model.PostWithCounts, error)
	DeletePost(ctx context.Context, userID, postID string) error
	React(ctx context.Context, userID, postID string, isLike bool) (*model.ReactionCounts, error)
}

// PostHandler は投稿関連のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	metrics metrics.MetricsCollector
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, collector metrics.MetricsCollector) *PostHandler {
	return &PostHandler{
		service: service,
		metrics: collector,
	}
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// reactRequest はリアクションリクエストのボディ。
type reactRequest struct {
	IsLike *bool `json:"is_like"`
}

// postResponse はクライアントに返す投稿表現。
type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// postWithCountsResponse は一覧用の投稿表現。
type postWithCountsResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	LikeCount    int64     `json:"like_count"`
	DislikeCount int64     `json:"dislike_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// reactionCountsResponse はリアクション集計のレスポンス表現。
type reactionCountsResponse struct {
	PostID       string `json:"postId"`
	LikeCount    int64  `json:"likeCount"`
	DislikeCount int64  `json:"dislikeCount"`
}

// Create は新規投稿を作成する。
// POST /post
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.service.CreatePost(r.Context(), user.ID, post.CreateInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusCreated, "Post created successfully", postResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	})
}

// List は全投稿を集計付きで返す。
// GET /posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context())
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	resp := make([]postWithCountsResponse, len(posts))
	for i, p := range posts {
		resp[i] = postWithCountsResponse{
			ID:           p.ID,
			Username:     p.Username,
			Title:        p.Title,
			Content:      p.Content,
			LikeCount:    p.LikeCount,
			DislikeCount: p.DislikeCount,
			CreatedAt:    p.CreatedAt,
		}
	}

	middleware.WriteSuccess(w, http.StatusOK, "Posts retrieved successfully", resp)
}

// Delete は投稿を削除する。所有者のみ削除できる。
// DELETE /post/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	postID := chi.URLParam(r, "id")

	if err := h.service.DeletePost(r.Context(), user.ID, postID); err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "Post deleted successfully", nil)
}

// React は投稿へのlike/dislikeを記録し、更新後の集計を返す。
// POST /post/{id}/react
func (h *PostHandler) React(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsLike == nil {
		middleware.WriteFail(w, http.StatusBadRequest, "is_like is required")
		return
	}

	postID := chi.URLParam(r, "id")

	counts, err := h.service.React(r.Context(), user.ID, postID, *req.IsLike)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	h.metrics.RecordReaction(*req.IsLike)

	middleware.WriteSuccess(w, http.StatusOK, "Reaction recorded successfully", reactionCountsResponse{
		PostID:       counts.PostID,
		LikeCount:    counts.LikeCount,
		DislikeCount: counts.DislikeCount,
	})
}
