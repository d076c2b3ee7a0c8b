package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/North004/Server/internal/model"
)

// PostgresReactionRepo はPostgreSQLを使用したリアクションリポジトリ。
type PostgresReactionRepo struct {
	db *sql.DB
}

// NewPostgresReactionRepo はPostgresReactionRepoを生成する。
func NewPostgresReactionRepo(db *sql.DB) *PostgresReactionRepo {
	return &PostgresReactionRepo{db: db}
}

// Upsert はリアクションを冪等にUPSERTする。
// lookup-then-writeではなく単一のINSERT ... ON CONFLICTで書き込むため、
// 同一ユーザーの同時リクエストでも(post_id, user_id)の行は高々1件に保たれる。
func (r *PostgresReactionRepo) Upsert(ctx context.Context, reaction *model.Reaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO post_reactions (id, post_id, user_id, is_like, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT ON CONSTRAINT post_reactions_post_user_key
		 DO UPDATE SET is_like = EXCLUDED.is_like, updated_at = EXCLUDED.updated_at`,
		reaction.ID, reaction.PostID, reaction.UserID, reaction.IsLike, reaction.CreatedAt, reaction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reaction: %w", err)
	}
	return nil
}

// CountByPost は指定投稿のlike/dislike集計を返す。
// リアクションが1件もない場合はゼロ値の集計を返す。
func (r *PostgresReactionRepo) CountByPost(ctx context.Context, postID string) (*model.ReactionCounts, error) {
	counts := &model.ReactionCounts{PostID: postID}
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN is_like THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN NOT is_like THEN 1 ELSE 0 END), 0)
		 FROM post_reactions WHERE post_id = $1`,
		postID,
	).Scan(&counts.LikeCount, &counts.DislikeCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to count reactions: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ ReactionRepository = (*PostgresReactionRepo)(nil)
