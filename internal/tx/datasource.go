package tx

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xraph/anvil/internal/config"
	"github.com/xraph/anvil/internal/errors"
)

// DataSource hands out dedicated connections. *sqlx.DB satisfies it.
type DataSource interface {
	Connx(ctx context.Context) (*sqlx.Conn, error)
}

// Executor is the query surface shared by *sqlx.DB, *sqlx.Conn and
// *sqlx.Tx, so data access code can run inside or outside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

var (
	_ DataSource = (*sqlx.DB)(nil)
	_ Executor   = (*sqlx.DB)(nil)
	_ Executor   = (*sqlx.Conn)(nil)
	_ Executor   = (*sqlx.Tx)(nil)
)

// ExecutorFrom returns the executor of the current status in ctx, or
// fallback when no status is active.
//
// Example:
//
//	func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
//	    _, err := tx.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM teacher WHERE id = $1`, id)
//	    return err
//	}
func ExecutorFrom(ctx context.Context, fallback Executor) Executor {
	if s := Current(ctx); s != nil {
		return s.Executor()
	}
	return fallback
}

// MustExecutorFrom is ExecutorFrom that panics when neither a status nor a
// fallback is available.
func MustExecutorFrom(ctx context.Context, fallback Executor) Executor {
	exec := ExecutorFrom(ctx, fallback)
	if exec == nil {
		panic("no transaction in context and no fallback executor provided")
	}
	return exec
}

// NewSQLDataSource opens a pool from cfg. The driver must be registered by
// the caller, e.g. with a blank import of github.com/lib/pq.
func NewSQLDataSource(cfg config.DataSourceConfig) (*sqlx.DB, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.ErrConfigError("datasource driver and dsn are required", nil)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.ErrConfigError("failed to open datasource", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return db, nil
}

// Connect opens the pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DataSourceConfig) (*sqlx.DB, error) {
	db, err := NewSQLDataSource(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.ErrConfigError("datasource ping failed", err)
	}
	return db, nil
}
