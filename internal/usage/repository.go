// AngelaMos | 2026
// repository.go

package usage

import (
	"context"
	"fmt"

	"github.com/postflowhq/postflow-api/internal/core"
)

type Repository interface {
	Insert(ctx context.Context, event *CreationEvent) error
	CountInRange(ctx context.Context, userID string, r Range) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, event *CreationEvent) error {
	query := `
		INSERT INTO creation_events (id, user_id, platform, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.Platform,
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert creation event: %w", err)
	}

	return nil
}

func (r *repository) CountInRange(
	ctx context.Context,
	userID string,
	rng Range,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM creation_events
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`
	if rng.EndInclusive {
		query = `
		SELECT COUNT(*)
		FROM creation_events
		WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3`
	}

	var count int
	err := r.db.GetContext(
		ctx,
		&count,
		query,
		userID,
		rng.Start.UTC(),
		rng.End.UTC(),
	)
	if err != nil {
		// Count reads feed display and gating; any store failure here is a
		// transient condition the caller may retry, not a policy outcome.
		return 0, fmt.Errorf(
			"count creation events: %w: %v",
			core.ErrStoreUnavailable,
			err,
		)
	}

	return count, nil
}
