// Package sqlite opens a document store backed by an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"growbook/internal/docstore"
	"growbook/internal/infra/docstore/sqldoc"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "growbook.db"

// Dialect describes SQLite's JSON1 flavour of the documents table.
var Dialect = sqldoc.Dialect{
	Driver:       docstore.DriverSQLite,
	Placeholder:  func(int) string { return "?" },
	PayloadParam: func(int) string { return "?" },
	FieldText: func(field string) string {
		return fmt.Sprintf("json_extract(payload, '$.%s')", field)
	},
	Schema: []string{`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`},
}

// NewStore opens (creating if needed) the SQLite database at path.
// ":memory:" yields a private in-memory database.
func NewStore(ctx context.Context, path string, opts ...sqldoc.Option) (*sqldoc.Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	store, err := sqldoc.New(ctx, db, Dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
