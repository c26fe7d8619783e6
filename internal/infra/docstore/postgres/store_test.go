package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"growbook/internal/docstore"
	"growbook/internal/docstore/docstoretest"
	"growbook/internal/infra/docstore/postgres"
	"growbook/internal/infra/docstore/postgres/testutil"
)

func TestNewStoreAppliesSchema(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := postgres.NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.Driver() != docstore.DriverPostgres {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	var sawTable bool
	for _, stmt := range conn.Statements() {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS DOCUMENTS") {
			sawTable = true
		}
	}
	if !sawTable {
		t.Fatalf("expected documents table DDL, got %v", conn.Statements())
	}
}

func TestNewStorePingFailureIsUnavailable(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := postgres.NewStore(context.Background(), "postgres://down"); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewStoreOpenFailureIsUnavailable(t *testing.T) {
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("bad dsn") })
	defer restore()

	if _, err := postgres.NewStore(context.Background(), "postgres://bad"); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSchemaFailureIsReported(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	_, err := postgres.NewStore(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "apply postgres schema") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestTransactionBeginFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := postgres.NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	conn.FailBegin = true
	err = store.RunTransaction(context.Background(), func(context.Context, docstore.Tx) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin error, got %v", err)
	}
}

// Runs against a real server when GROWBOOK_TEST_POSTGRES_DSN is set.
func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv("GROWBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GROWBOOK_TEST_POSTGRES_DSN not set")
	}
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		store, err := postgres.NewStore(context.Background(), dsn)
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		if _, err := store.DB().Exec(`TRUNCATE TABLE documents`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	})
}
