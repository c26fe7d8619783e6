// Package docstore defines the document database contract used by the
// repositories: named collections of flat key-value documents, equality
// queries with ordering, and timestamps assigned by the store's own clock.
// Backends live under internal/infra/docstore.
package docstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"
)

// Driver identifies a concrete document store implementation.
type Driver string

const (
	DriverMemory    Driver = "memory"    // in-process (tests / ephemeral)
	DriverSQLite    Driver = "sqlite"    // embedded sqlite file
	DriverPostgres  Driver = "postgres"  // PostgreSQL JSONB documents
	DriverRedis     Driver = "redis"     // Redis keys + collection index sets
	DriverFirestore Driver = "firestore" // Google Cloud Firestore
)

var (
	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("docstore: document already exists")
	// ErrUnavailable marks failures to reach or initialise the backend.
	ErrUnavailable = errors.New("docstore: store unavailable")
)

// Fields is the body of a document. Values are strings, numbers, bools,
// time.Time, string slices, nil, or ServerTimestamp on writes.
type Fields map[string]any

// Clone returns a copy deep enough that slices are not shared.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		cp := make([]any, len(t))
		for i, item := range t {
			cp[i] = cloneValue(item)
		}
		return cp
	default:
		return v
	}
}

type serverTimestamp struct{}

func (serverTimestamp) String() string { return "ServerTimestamp" }

// ServerTimestamp is a write-only sentinel. Backends replace it with their
// own clock when the document is written.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveServerTimestamps returns a copy of f with every sentinel replaced by now.
func ResolveServerTimestamps(f Fields, now time.Time) Fields {
	out := f.Clone()
	for k, v := range out {
		if IsServerTimestamp(v) {
			out[k] = now
		}
	}
	return out
}

// Document is a stored document as read back from a backend.
type Document struct {
	ID     string
	Fields Fields
}

// Value returns a field value and whether the field is present.
func (d Document) Value(name string) (any, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

// Reader is the read half of the contract.
type Reader interface {
	// Get returns ErrNotFound when the id is absent.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Query returns a fully materialised, ordered slice.
	Query(ctx context.Context, q Query) ([]Document, error)
}

// Writer is the write half of the contract.
type Writer interface {
	// Add stores a new document under a store-generated id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Create stores a document under id, failing with ErrAlreadyExists if taken.
	Create(ctx context.Context, collection, id string, fields Fields) error
	// Update merges fields into an existing document (ErrNotFound when absent).
	// A nil value stores null; keys not in fields are left untouched.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes a document; deleting a missing id is not an error.
	Delete(ctx context.Context, collection, id string) error
}

// Tx is the view of the store available inside a transaction.
type Tx interface {
	Reader
	Writer
}

// Store is a process-wide document store handle, safe for concurrent use.
type Store interface {
	Reader
	Writer
	Driver() Driver
	Ping(ctx context.Context) error
	Close() error
}

// Transactor is implemented by stores that can run a read-then-write
// sequence atomically. Reads inside fn must happen before writes.
type Transactor interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Classify wraps connectivity failures with ErrUnavailable so callers can
// tell them apart from logical errors. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
