package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mpas/sequencer/common/config"
	"github.com/mpas/sequencer/common/logger"
)

const (
	connectTimeout = 5 * time.Second
	healthTimeout  = 3 * time.Second
)

// DB is the shared Postgres pool for order reads and commit batches
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// PoolConfig translates the database settings into a pgxpool config.
// Sessions run in UTC so scheduled_time round-trips without a zone shift.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	d := cfg.Database
	pc.MaxConns = int32(d.MaxConns)
	pc.MinConns = int32(d.MinConns)
	pc.MaxConnLifetime = d.MaxLifetime
	pc.MaxConnIdleTime = d.MaxIdleTime
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"
	pc.ConnConfig.RuntimeParams["application_name"] = cfg.Service.Name

	return pc, nil
}

// New opens the pool and verifies the server is reachable
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	log.Info("order database connected",
		"host", cfg.Database.Host,
		"db", cfg.Database.Database,
		"max_conns", pc.MaxConns,
	)

	return &DB{Pool: pool, log: log}, nil
}

// Beginner starts transactions. *DB satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RowQuerier runs single-row queries. *DB satisfies it.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn inside a transaction. Any error from fn rolls back.
func InTx(ctx context.Context, b Beginner, fn func(pgx.Tx) error) error {
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ServerVersion reports the Postgres version string
func ServerVersion(ctx context.Context, q RowQuerier) (string, error) {
	var version string
	if err := q.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("query server version: %w", err)
	}
	return version, nil
}

// Close releases every pooled connection
func (db *DB) Close() {
	db.log.Info("closing order database pool")
	db.Pool.Close()
}

// Health pings the server with a short deadline
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return db.Ping(ctx)
}
