// Package storage is the persistence boundary (§6 "Persisted state
// layout"): Postgres via sqlx/lib/pq for entity rows, golang-migrate for
// schema, and an optional ClickHouse sink for the append-only audit log.
// Every repository method returns pkg/errs-classified errors so callers
// never have to special-case database/sql.ErrNoRows themselves.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/logger"
)

// DB wraps a sqlx connection pool. Kept as a thin named type (rather
// than aliasing *sqlx.DB directly) so repositories can be constructed
// against a fake in unit tests without dragging in a real driver.
type DB struct {
	*sqlx.DB
}

// Open connects to Postgres and verifies the connection with a ping.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("postgres connection established")
	return &DB{DB: conn}, nil
}

// Health pings the connection pool; used by /ready.
func (d *DB) Health(ctx context.Context) error {
	return d.PingContext(ctx)
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.DB.Close()
}
