// AngelaMos | 2026
// database_test.go

package core

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	deadlines []bool
	block     bool
}

func (r *recordingStore) observe(ctx context.Context) error {
	_, ok := ctx.Deadline()
	r.deadlines = append(r.deadlines, ok)
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (r *recordingStore) GetContext(
	ctx context.Context,
	_ any,
	_ string,
	_ ...any,
) error {
	return r.observe(ctx)
}

func (r *recordingStore) SelectContext(
	ctx context.Context,
	_ any,
	_ string,
	_ ...any,
) error {
	return r.observe(ctx)
}

func (r *recordingStore) ExecContext(
	ctx context.Context,
	_ string,
	_ ...any,
) (sql.Result, error) {
	return nil, r.observe(ctx)
}

func (r *recordingStore) QueryContext(
	_ context.Context,
	_ string,
	_ ...any,
) (*sql.Rows, error) {
	return nil, nil
}

func (r *recordingStore) QueryxContext(
	_ context.Context,
	_ string,
	_ ...any,
) (*sqlx.Rows, error) {
	return nil, nil
}

func (r *recordingStore) QueryRowxContext(
	_ context.Context,
	_ string,
	_ ...any,
) *sqlx.Row {
	return nil
}

func (r *recordingStore) DriverName() string { return "pgx" }

func (r *recordingStore) Rebind(query string) string { return query }

func (r *recordingStore) BindNamed(
	query string,
	_ any,
) (string, []any, error) {
	return query, nil, nil
}

func TestWithQueryTimeoutBoundsEveryStatement(t *testing.T) {
	store := &recordingStore{}
	db := WithQueryTimeout(store, time.Second)

	ctx := context.Background()
	require.NoError(t, db.GetContext(ctx, nil, "SELECT 1"))
	require.NoError(t, db.SelectContext(ctx, nil, "SELECT 1"))
	_, err := db.ExecContext(ctx, "UPDATE x")
	require.NoError(t, err)

	require.Len(t, store.deadlines, 3)
	for i, hadDeadline := range store.deadlines {
		assert.True(t, hadDeadline, "call %d ran without a deadline", i)
	}
}

func TestWithQueryTimeoutZeroIsPassthrough(t *testing.T) {
	store := &recordingStore{}
	db := WithQueryTimeout(store, 0)

	require.NoError(t, db.GetContext(context.Background(), nil, "SELECT 1"))

	require.Len(t, store.deadlines, 1)
	assert.False(t, store.deadlines[0])
}

func TestStalledQuerySurfacesStoreUnavailable(t *testing.T) {
	store := &recordingStore{block: true}
	db := WithQueryTimeout(store, 10*time.Millisecond)

	err := db.GetContext(context.Background(), nil, "SELECT pg_sleep(60)")

	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err))
}
