// AngelaMos | 2026
// repository.go

package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/postflowhq/postflow-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, sub *Subscriber) error
	GetByID(ctx context.Context, id string) (*Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*Subscriber, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, params ListParams) ([]Subscriber, int, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	// UpdateTierConditional applies a tier patch only if the row still
	// carries expectedVersion. A lost race surfaces as core.ErrConflict;
	// the caller re-reads and decides whether to retry.
	UpdateTierConditional(
		ctx context.Context,
		id string,
		expectedVersion int,
		patch TierPatch,
	) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const subscriberColumns = `
	id, email, password_hash, name, role, tier, subscribed,
	tier_effective_at, expires_at, token_version, version,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, sub *Subscriber) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, role, tier, subscribed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at, token_version, version`

	err := r.db.GetContext(ctx, sub, query,
		sub.ID,
		sub.Email,
		sub.PasswordHash,
		sub.Name,
		sub.Role,
		sub.Tier,
		sub.Subscribed,
	)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create subscriber: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create subscriber: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Subscriber, error) {
	query := `SELECT` + subscriberColumns + `
		FROM users
		WHERE id = $1`

	var sub Subscriber
	err := r.db.GetContext(ctx, &sub, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscriber: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}

	return &sub, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*Subscriber, error) {
	query := `SELECT` + subscriberColumns + `
		FROM users
		WHERE email = $1`

	var sub Subscriber
	err := r.db.GetContext(ctx, &sub, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscriber by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber by email: %w", err)
	}

	return &sub, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Subscriber, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "TRUE")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Tier != "" {
		conditions = append(conditions, fmt.Sprintf("tier = $%d", argIdx))
		args = append(args, params.Tier)
		argIdx++
	}

	if params.Subscribed != nil {
		conditions = append(conditions, fmt.Sprintf("subscribed = $%d", argIdx))
		args = append(args, *params.Subscribed)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}

	query := fmt.Sprintf(`SELECT`+subscriberColumns+`
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var subs []Subscriber
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}

	return subs, total, nil
}

func (r *repository) UpdateName(ctx context.Context, id, name string) error {
	query := `
		UPDATE users
		SET name = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "update name", query, id, name)
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "update password", query, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1`

	return r.execExpectingRow(ctx, "increment token version", query, id)
}

func (r *repository) UpdateTierConditional(
	ctx context.Context,
	id string,
	expectedVersion int,
	patch TierPatch,
) error {
	query := `
		UPDATE users
		SET tier = $3,
		    subscribed = $4,
		    tier_effective_at = $5,
		    expires_at = $6,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2`

	result, err := r.db.ExecContext(ctx, query,
		id,
		expectedVersion,
		patch.Tier,
		patch.Subscribed,
		patch.TierEffectiveAt,
		patch.ExpiresAt,
	)
	if err != nil {
		if core.IsSerializationFailure(err) {
			return fmt.Errorf("update tier: %w", core.ErrConflict)
		}
		return fmt.Errorf("update tier: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}

	if rows == 0 {
		// Distinguish a lost race from a missing subscriber.
		exists, existsErr := r.existsByID(ctx, id)
		if existsErr != nil {
			return fmt.Errorf("update tier: %w", existsErr)
		}
		if !exists {
			return fmt.Errorf("update tier: %w", core.ErrNotFound)
		}
		return fmt.Errorf("update tier: %w", core.ErrConflict)
	}

	return nil
}

func (r *repository) existsByID(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *repository) execExpectingRow(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
