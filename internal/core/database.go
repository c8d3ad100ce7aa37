// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/postflowhq/postflow-api/internal/config"
)

type Database struct {
	DB           *sqlx.DB
	queryTimeout time.Duration
}

func NewDatabase(
	ctx context.Context,
	cfg config.DatabaseConfig,
) (*Database, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(jitteredDuration(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close() //nolint:errcheck // cleanup on connection failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Database{DB: db, queryTimeout: cfg.QueryTimeout}, nil
}

// Queries returns a DBTX that bounds every statement with the configured
// query timeout, so a stalled store surfaces context.DeadlineExceeded
// instead of holding the request goroutine.
func (d *Database) Queries() DBTX {
	return WithQueryTimeout(d.DB, d.queryTimeout)
}

func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

type DBTX interface {
	sqlx.ExtContext
	sqlx.ExecerContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(
		ctx context.Context,
		dest any,
		query string,
		args ...any,
	) error
}

// InTx runs fn inside a transaction. The whole transaction shares one
// deadline derived from the query timeout; fn must use the context it is
// handed for every statement.
func (d *Database) InTx(
	ctx context.Context,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) error {
	if d.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.queryTimeout)
		defer cancel()
	}

	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() //nolint:errcheck // best-effort rollback on panic
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// WithQueryTimeout wraps db so each fully-consuming call (Get, Select,
// Exec) carries its own deadline. A timeout of zero disables the wrapping.
func WithQueryTimeout(db DBTX, timeout time.Duration) DBTX {
	if timeout <= 0 {
		return db
	}
	return &deadlineDB{db: db, timeout: timeout}
}

type deadlineDB struct {
	db      DBTX
	timeout time.Duration
}

func (d *deadlineDB) GetContext(
	ctx context.Context,
	dest any,
	query string,
	args ...any,
) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.GetContext(ctx, dest, query, args...)
}

func (d *deadlineDB) SelectContext(
	ctx context.Context,
	dest any,
	query string,
	args ...any,
) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.SelectContext(ctx, dest, query, args...)
}

func (d *deadlineDB) ExecContext(
	ctx context.Context,
	query string,
	args ...any,
) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.ExecContext(ctx, query, args...)
}

// Cursor results outlive the call, so the caller keeps ownership of the
// deadline on these.

func (d *deadlineDB) QueryContext(
	ctx context.Context,
	query string,
	args ...any,
) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func (d *deadlineDB) QueryxContext(
	ctx context.Context,
	query string,
	args ...any,
) (*sqlx.Rows, error) {
	return d.db.QueryxContext(ctx, query, args...)
}

func (d *deadlineDB) QueryRowxContext(
	ctx context.Context,
	query string,
	args ...any,
) *sqlx.Row {
	return d.db.QueryRowxContext(ctx, query, args...)
}

func (d *deadlineDB) DriverName() string {
	return d.db.DriverName()
}

func (d *deadlineDB) Rebind(query string) string {
	return d.db.Rebind(query)
}

func (d *deadlineDB) BindNamed(query string, arg any) (string, []any, error) {
	return d.db.BindNamed(query, arg)
}

// IsDuplicateKey reports a Postgres unique-constraint violation.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// IsSerializationFailure reports a Postgres serialization or deadlock
// failure. Callers treat it like a lost optimistic-concurrency race.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func jitteredDuration(base time.Duration) time.Duration {
	//nolint:gosec // G404: non-security-sensitive jitter for connection pool
	jitter := time.Duration(rand.Int64N(int64(base / 7)))
	return base + jitter
}
