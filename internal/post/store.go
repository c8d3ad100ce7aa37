// AngelaMos | 2026
// store.go

package post

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/usage"
)

// Scheduler persists an accepted post together with the creation event it
// consumes, in one transaction.
type Scheduler interface {
	SaveScheduled(
		ctx context.Context,
		post *Post,
		event *usage.CreationEvent,
	) error
}

type txStore struct {
	db *core.Database
}

func NewStore(db *core.Database) Scheduler {
	return &txStore{db: db}
}

func (s *txStore) SaveScheduled(
	ctx context.Context,
	post *Post,
	event *usage.CreationEvent,
) error {
	return s.db.InTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := NewRepository(tx).Insert(ctx, post); err != nil {
			return err
		}
		return usage.NewRepository(tx).Insert(ctx, event)
	})
}
