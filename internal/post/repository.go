// AngelaMos | 2026
// repository.go

package post

import (
	"context"
	"fmt"

	"github.com/postflowhq/postflow-api/internal/core"
)

type Repository interface {
	Insert(ctx context.Context, post *Post) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Post, int, error)
	Cancel(ctx context.Context, id, userID string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, post *Post) error {
	query := `
		INSERT INTO posts (id, user_id, platform, content, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, post, query,
		post.ID,
		post.UserID,
		post.Platform,
		post.Content,
		post.ScheduledAt.UTC(),
		post.Status,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]Post, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM posts WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := `
		SELECT id, user_id, platform, content, scheduled_at, status,
		       created_at, updated_at
		FROM posts
		WHERE user_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3`

	var posts []Post
	if err := r.db.SelectContext(ctx, &posts, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	return posts, total, nil
}

func (r *repository) Cancel(ctx context.Context, id, userID string) error {
	query := `
		UPDATE posts
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = $4`

	result, err := r.db.ExecContext(
		ctx, query, id, userID, StatusCanceled, StatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("cancel post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel post: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("cancel post: %w", core.ErrNotFound)
	}

	return nil
}
