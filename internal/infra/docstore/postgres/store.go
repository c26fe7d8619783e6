// Package postgres opens a document store backed by a PostgreSQL JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"growbook/internal/docstore"
	"growbook/internal/infra/docstore/sqldoc"
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/growbook?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect describes the PostgreSQL JSONB flavour of the documents table.
var Dialect = sqldoc.Dialect{
	Driver:       docstore.DriverPostgres,
	Placeholder:  func(n int) string { return "$" + strconv.Itoa(n) },
	PayloadParam: func(n int) string { return "$" + strconv.Itoa(n) + "::jsonb" },
	FieldText: func(field string) string {
		return fmt.Sprintf("payload->>'%s'", field)
	},
	LockSuffix: " FOR UPDATE",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (collection, (payload->>'ownerId'))`,
	},
	TxOptions: &sql.TxOptions{Isolation: sql.LevelSerializable},
}

// NewStore connects to dsn (DefaultDSN when empty), verifies connectivity and
// applies the schema. Connection failures wrap docstore.ErrUnavailable.
func NewStore(ctx context.Context, dsn string, opts ...sqldoc.Option) (*sqldoc.Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w: %w", docstore.ErrUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w: %w", docstore.ErrUnavailable, err)
	}
	store, err := sqldoc.New(ctx, db, Dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
