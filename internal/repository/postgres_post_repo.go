package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/North004/Server/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID, post.UserID, post.Title, post.Content, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM posts WHERE id = $1`,
		id,
	).Scan(&post.ID, &post.UserID, &post.Title, &post.Content, &post.CreatedAt, &post.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	return post, nil
}

// DeleteByID は指定IDの投稿を削除する。
// 関連するpost_reactionsはCASCADE削除される。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// ListWithCounts は全投稿を投稿者名とリアクション集計付きで作成日時降順で返す。
// 集計はpost_reactionsの行から都度導出する。
func (r *PostgresPostRepo) ListWithCounts(ctx context.Context) ([]model.PostWithCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
		        u.username,
		        COALESCE(SUM(CASE WHEN r.is_like THEN 1 ELSE 0 END), 0) AS like_count,
		        COALESCE(SUM(CASE WHEN NOT r.is_like THEN 1 ELSE 0 END), 0) AS dislike_count
		 FROM posts p
		 JOIN users u ON u.id = p.user_id
		 LEFT JOIN post_reactions r ON r.post_id = p.id
		 GROUP BY p.id, u.username
		 ORDER BY p.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []model.PostWithCounts
	for rows.Next() {
		var p model.PostWithCounts
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt,
			&p.Username, &p.LikeCount, &p.DislikeCount); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
