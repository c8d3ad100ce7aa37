// AngelaMos | 2026
// applier.go

package promo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/subscriber"
)

// Grant is everything needed to commit one redemption atomically: both
// expected values pin the optimistic-concurrency guards, so a grant built
// from stale reads fails cleanly instead of double-spending a code.
type Grant struct {
	Code            string
	ExpectedCount   int
	UserID          string
	ExpectedVersion int
	Patch           subscriber.TierPatch
	RedeemedAt      time.Time
}

// Applier commits a grant: counter increment, redemption record, and tier
// patch succeed or fail together.
type Applier interface {
	Apply(ctx context.Context, grant Grant) error
}

type txApplier struct {
	db *core.Database
}

func NewApplier(db *core.Database) Applier {
	return &txApplier{db: db}
}

func (a *txApplier) Apply(ctx context.Context, grant Grant) error {
	return a.db.InTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		codes := NewRepository(tx)
		subs := subscriber.NewRepository(tx)

		if err := codes.IncrementRedemptionCount(
			ctx, grant.Code, grant.ExpectedCount,
		); err != nil {
			return err
		}

		if err := codes.InsertRedemption(
			ctx, grant.Code, grant.UserID, grant.RedeemedAt,
		); err != nil {
			return err
		}

		return subs.UpdateTierConditional(
			ctx, grant.UserID, grant.ExpectedVersion, grant.Patch,
		)
	})
}
