// Package user はユーザープロフィールのドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"time"

	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/repository"
)

// ProfileInfo はユーザーと公開プロフィールを結合したドメインオブジェクト。
// パスワードハッシュは含まない。
type ProfileInfo struct {
	UserID    string
	Username  string
	Email     string
	Photo     string
	Bio       string
	CreatedAt time.Time
}

// Service はユーザー情報のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, profileRepo repository.ProfileRepository) *Service {
	return &Service{
		userRepo:    userRepo,
		profileRepo: profileRepo,
	}
}

// GetProfile はユーザー名で公開プロフィールを取得する。
// ユーザー不在とプロフィール不在は別のエラーとして区別する。
func (s *Service) GetProfile(ctx context.Context, username string) (*ProfileInfo, error) {
	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	p, err := s.profileRepo.FindByUserID(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}

	return &ProfileInfo{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Photo:     p.Photo,
		Bio:       p.Bio,
		CreatedAt: u.CreatedAt,
	}, nil
}

// ListUsers は全ユーザーを返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}
