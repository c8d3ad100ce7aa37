// AngelaMos | 2026
// repository.go

package promo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/postflowhq/postflow-api/internal/core"
)

type Repository interface {
	CreateCode(ctx context.Context, code *PromoCode) error
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	ListCodes(ctx context.Context) ([]PromoCode, error)
	HasRedemption(ctx context.Context, code, userID string) (bool, error)
	// IncrementRedemptionCount bumps the counter only if it still holds
	// expectedCount and the cap is not reached. Zero rows means the caller
	// lost a race or the code just sold out; it re-reads to find out which.
	IncrementRedemptionCount(
		ctx context.Context,
		code string,
		expectedCount int,
	) error
	InsertRedemption(ctx context.Context, code, userID string, at time.Time) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) CreateCode(ctx context.Context, code *PromoCode) error {
	query := `
		INSERT INTO promo_codes
			(code, granted_tier, validity_days, max_redemptions,
			 per_user_once, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING redemption_count, created_at`

	err := r.db.GetContext(ctx, code, query,
		code.Code,
		code.GrantedTier,
		code.ValidityDays,
		code.MaxRedemptions,
		code.PerUserOnce,
		code.ExpiresAt,
	)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create promo code: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create promo code: %w", err)
	}

	return nil
}

func (r *repository) GetByCode(
	ctx context.Context,
	code string,
) (*PromoCode, error) {
	query := `
		SELECT code, granted_tier, validity_days, max_redemptions,
		       redemption_count, per_user_once, expires_at, created_at
		FROM promo_codes
		WHERE code = $1`

	var pc PromoCode
	err := r.db.GetContext(ctx, &pc, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get promo code: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get promo code: %w", err)
	}

	return &pc, nil
}

func (r *repository) ListCodes(ctx context.Context) ([]PromoCode, error) {
	query := `
		SELECT code, granted_tier, validity_days, max_redemptions,
		       redemption_count, per_user_once, expires_at, created_at
		FROM promo_codes
		ORDER BY created_at DESC`

	var codes []PromoCode
	if err := r.db.SelectContext(ctx, &codes, query); err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}

	return codes, nil
}

func (r *repository) HasRedemption(
	ctx context.Context,
	code, userID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM promo_redemptions WHERE code = $1 AND user_id = $2
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code, userID); err != nil {
		return false, fmt.Errorf("check redemption: %w", err)
	}

	return exists, nil
}

func (r *repository) IncrementRedemptionCount(
	ctx context.Context,
	code string,
	expectedCount int,
) error {
	query := `
		UPDATE promo_codes
		SET redemption_count = redemption_count + 1
		WHERE code = $1
		  AND redemption_count = $2
		  AND (max_redemptions IS NULL
		       OR redemption_count < max_redemptions)`

	result, err := r.db.ExecContext(ctx, query, code, expectedCount)
	if err != nil {
		if core.IsSerializationFailure(err) {
			return fmt.Errorf("increment redemption count: %w", core.ErrConflict)
		}
		return fmt.Errorf("increment redemption count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment redemption count: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("increment redemption count: %w", core.ErrConflict)
	}

	return nil
}

func (r *repository) InsertRedemption(
	ctx context.Context,
	code, userID string,
	at time.Time,
) error {
	// DO NOTHING keeps a repeat redemption of a multi-use code from
	// aborting the transaction; single-use enforcement lives in the
	// validation chain, which the counter guard makes race-safe.
	query := `
		INSERT INTO promo_redemptions (code, user_id, redeemed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, user_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, code, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}

	return nil
}
