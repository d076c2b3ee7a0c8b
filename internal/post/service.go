// Package post は投稿とリアクションのドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/repository"
	"github.com/North004/Server/internal/security"
)

// CreateInput は投稿作成の入力。
type CreateInput struct {
	Title   string `validate:"required,max=200"`
	Content string `validate:"required,max=20000"`
}

// Service は投稿管理のサービス層。
// 投稿の作成・一覧・削除と、like/dislikeリアクションのビジネスロジックを提供する。
type Service struct {
	postRepo     repository.PostRepository
	reactionRepo repository.ReactionRepository
	sanitizer    security.ContentSanitizerService
	validate     *validator.Validate
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	postRepo repository.PostRepository,
	reactionRepo repository.ReactionRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		postRepo:     postRepo,
		reactionRepo: reactionRepo,
		sanitizer:    sanitizer,
		validate:     validator.New(),
	}
}

// CreatePost は新規投稿を作成する。
// コンテンツは保存前にサニタイズされる。
func (s *Service) CreatePost(ctx context.Context, userID string, input CreateInput) (*model.Post, error) {
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, model.NewValidationError(fmt.Sprintf("%s is invalid", verrs[0].Field()))
		}
		return nil, model.NewValidationError("Invalid input")
	}

	now := time.Now()
	p := &model.Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     input.Title,
		Content:   s.sanitizer.Sanitize(input.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.postRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	return p, nil
}

// ListPosts は全投稿を投稿者名とリアクション集計付きで返す。
func (s *Service) ListPosts(ctx context.Context) ([]model.PostWithCounts, error) {
	posts, err := s.postRepo.ListWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// DeletePost は投稿を削除する。
// 投稿の所有者のみ削除できる。他ユーザーの投稿は存在を漏らさないため404を返す。
func (s *Service) DeletePost(ctx context.Context, userID, postID string) error {
	p, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return model.NewPostNotFoundError()
	}
	if p.UserID != userID {
		return model.NewPostNotFoundError()
	}

	if err := s.postRepo.DeleteByID(ctx, postID); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	return nil
}

// React は投稿へのlike/dislikeを記録し、更新後の集計を返す。
// 同一ユーザーの再リアクションは上書きとなり、行は増えない（冪等）。
// 同値での再送は集計を変えず、反転はlike/dislikeの両方に反映される。
func (s *Service) React(ctx context.Context, userID, postID string, isLike bool) (*model.ReactionCounts, error) {
	p, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError()
	}

	now := time.Now()
	reaction := &model.Reaction{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		IsLike:    isLike,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.reactionRepo.Upsert(ctx, reaction); err != nil {
		return nil, fmt.Errorf("リアクションの記録に失敗しました: %w", err)
	}

	counts, err := s.reactionRepo.CountByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("リアクション集計の取得に失敗しました: %w", err)
	}

	return counts, nil
}
