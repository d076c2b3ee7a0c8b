// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/North004/Server/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// ExistsByUsername はユーザー名が使用済みかを返す。
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail はメールアドレスが使用済みかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// CreateWithProfile はユーザーとプロフィールを同一トランザクションで作成する。
	// username/emailの一意制約違反はErrDuplicateUsername/ErrDuplicateEmailを返す。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error

	// ListAll は全ユーザーを作成日時昇順で返す。
	ListAll(ctx context.Context) ([]*model.User, error)
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// DeleteByID は指定IDの投稿を削除する。
	// 関連するpost_reactionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListWithCounts は全投稿を投稿者名とリアクション集計付きで
	// 作成日時降順で返す。
	ListWithCounts(ctx context.Context) ([]model.PostWithCounts, error)
}

// ReactionRepository はリアクションデータの永続化インターフェース。
type ReactionRepository interface {
	// Upsert はリアクションを冪等にUPSERTする。
	// (post_id, user_id)に既存行があればis_likeを上書きし、なければ新規作成する。
	// 同時リクエストでもUNIQUE制約により重複行は発生しない。
	Upsert(ctx context.Context, reaction *model.Reaction) error

	// CountByPost は指定投稿のlike/dislike集計を返す。
	// リアクションが1件もない場合はゼロ値の集計を返す。
	CountByPost(ctx context.Context, postID string) (*model.ReactionCounts, error)
}
