package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/North004/Server/internal/model"
	"github.com/North004/Server/internal/repository"
)

// 新規登録時のプロフィールデフォルト値。
const (
	defaultProfilePhoto = "default.png"
	defaultProfileBio   = "My Bio"
)

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=128"`
}

// LoginInput はログインの入力。
type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Service は認証のサービス層。
// 登録、ログイン、ログアウトのビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   *PasswordHasher
	issuer   IdentityIssuer
	validate *validator.Validate
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, hasher *PasswordHasher, issuer IdentityIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		issuer:   issuer,
		validate: validator.New(),
	}
}

// Issuer は設定済みのIdentityIssuerを返す。
// ミドルウェアとハンドラがCookie名・証明解決に使用する。
func (s *Service) Issuer() IdentityIssuer {
	return s.issuer
}

// Register は新規ユーザーを登録する。
// ユーザーとデフォルト値付きプロフィールを同一トランザクションで作成し、
// 作成したユーザーを返す。
// 事前チェックとINSERTの間に同名登録が競合しても、一意制約違反を
// 重複エラーとして返すため、重複アカウントは作成されない。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, model.NewValidationError(validationMessage(err))
	}

	// メールアドレスは小文字に正規化して保存する。
	// 大文字小文字違いの同一アドレスを別アカウントとして登録させない。
	input.Email = strings.ToLower(input.Email)

	// 事前チェック。競合時の最終防衛線はDBの一意制約。
	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("ユーザー名の重複確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateUsernameError()
	}

	exists, err = s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateEmailError()
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.NewString(),
		Username:  input.Username,
		Email:     input.Email,
		Password:  hashed,
		Role:      "user",
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := &model.Profile{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Photo:     defaultProfilePhoto,
		Bio:       defaultProfileBio,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, model.NewDuplicateUsernameError()
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	return user, nil
}

// Login は認証情報を検証し、成功時に証明を発行する。
// 戻り値はユーザー、Cookieに格納する証明、Cookieのmax-age（秒）。
// ユーザー不在とパスワード不一致はいずれも400を返すが、メッセージは区別する。
func (s *Service) Login(ctx context.Context, input LoginInput) (*model.User, string, int, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, "", 0, model.NewValidationError(validationMessage(err))
	}

	user, err := s.userRepo.FindByUsername(ctx, input.Username)
	if err != nil {
		return nil, "", 0, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, "", 0, model.NewInvalidCredentialError("User does not exist")
	}

	if !s.hasher.Verify(input.Password, user.Password) {
		return nil, "", 0, model.NewInvalidCredentialError("Invalid password")
	}

	proof, maxAge, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", 0, fmt.Errorf("証明の発行に失敗しました: %w", err)
	}

	return user, proof, maxAge, nil
}

// Logout は証明を失効させる。
// セッション戦略では即時失効、トークン戦略ではサーバー側の失効手段が
// ないため何もしない（Cookie削除はハンドラが行う）。
func (s *Service) Logout(ctx context.Context, proof string) error {
	if err := s.issuer.Invalidate(ctx, proof); err != nil {
		return fmt.Errorf("証明の失効に失敗しました: %w", err)
	}
	return nil
}

// validationMessage はvalidatorのエラーをクライアント向けメッセージに変換する。
// 最初のフィールドエラーのみを報告する。
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fe.Field())
		case "email":
			return "Email must be a valid email address"
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		case "alphanum":
			return fmt.Sprintf("%s must contain only letters and digits", fe.Field())
		}
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
	return "Invalid input"
}
