// Package sqldoc stores documents as JSON payload rows in a single SQL table.
// The sqlite and postgres packages supply a Dialect and open the connection;
// everything else is shared here.
package sqldoc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"growbook/internal/docstore"
)

// Compile-time contract assertions.
var (
	_ docstore.Store      = (*Store)(nil)
	_ docstore.Transactor = (*Store)(nil)
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Driver docstore.Driver
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// PayloadParam renders the bind parameter that receives the JSON payload.
	PayloadParam func(n int) string
	// FieldText renders an expression yielding a top-level payload field as text.
	FieldText func(field string) string
	// LockSuffix is appended to row reads performed before a write.
	LockSuffix string
	// Schema is applied on open.
	Schema []string
	// TxOptions are used for transactions.
	TxOptions *sql.TxOptions
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to resolve server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store implements docstore.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	nowFn   func() time.Time
	newID   func() string
}

// New applies the dialect schema and returns a store over db.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, docstore.Classify(fmt.Errorf("apply %s schema: %w", dialect.Driver, err))
		}
	}
	s := &Store{
		db:      db,
		dialect: dialect,
		nowFn:   func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Driver returns the dialect driver.
func (s *Store) Driver() docstore.Driver { return s.dialect.Driver }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w: %w", s.dialect.Driver, docstore.ErrUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ops(q queryer, now time.Time) ops {
	return ops{q: q, d: s.dialect, now: now, newID: s.newID}
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	return s.ops(s.db, s.nowFn()).get(ctx, collection, id, false)
}

// Query reads the documents matching q.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	return s.ops(s.db, s.nowFn()).query(ctx, q)
}

// Add inserts a document under a generated id.
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	return s.ops(s.db, s.nowFn()).add(ctx, collection, fields)
}

// Create inserts a document under id unless taken.
func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.ops(s.db, s.nowFn()).create(ctx, collection, id, fields)
}

// Update merges fields into a document inside its own transaction.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Update(ctx, collection, id, fields)
	})
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.ops(s.db, s.nowFn()).delete(ctx, collection, id)
}

// RunTransaction runs fn inside a database transaction and commits on success.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return docstore.Classify(fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, txOps{ops: s.ops(tx, s.nowFn())}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return docstore.Classify(fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

type ops struct {
	q     queryer
	d     Dialect
	now   time.Time
	newID func() string
}

// txOps is the docstore.Tx handed to transaction callbacks.
type txOps struct{ ops }

func (t txOps) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	return t.get(ctx, collection, id, false)
}

func (t txOps) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	return t.query(ctx, q)
}

func (t txOps) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	return t.add(ctx, collection, fields)
}

func (t txOps) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return t.create(ctx, collection, id, fields)
}

func (t txOps) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	current, err := t.get(ctx, collection, id, true)
	if err != nil {
		return err
	}
	merged := current.Fields
	for k, v := range docstore.ResolveServerTimestamps(fields, t.now) {
		merged[k] = v
	}
	payload, err := docstore.Encode(merged)
	if err != nil {
		return err
	}
	p := t.d.Placeholder
	stmt := fmt.Sprintf(`UPDATE documents SET payload = %s WHERE collection = %s AND id = %s`, t.d.PayloadParam(1), p(2), p(3))
	if _, err := t.q.ExecContext(ctx, stmt, string(payload), collection, id); err != nil {
		return docstore.Classify(fmt.Errorf("update %s/%s: %w", collection, id, err))
	}
	return nil
}

func (t txOps) Delete(ctx context.Context, collection, id string) error {
	return t.delete(ctx, collection, id)
}

func (o ops) get(ctx context.Context, collection, id string, lock bool) (docstore.Document, error) {
	p := o.d.Placeholder
	stmt := fmt.Sprintf(`SELECT payload FROM documents WHERE collection = %s AND id = %s`, p(1), p(2))
	if lock {
		stmt += o.d.LockSuffix
	}
	var payload []byte
	err := o.q.QueryRowContext(ctx, stmt, collection, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, docstore.Classify(fmt.Errorf("select %s/%s: %w", collection, id, err))
	}
	fields, err := docstore.Decode(payload)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Fields: fields}, nil
}

func (o ops) query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	p := o.d.Placeholder
	var b strings.Builder
	args := []any{q.Collection}
	fmt.Fprintf(&b, `SELECT id, payload FROM documents WHERE collection = %s`, p(1))
	for _, f := range q.Filters {
		s, ok := f.Value.(string)
		if !ok || !isIdentifier(f.Field) {
			// evaluated in Go by q.Apply below
			continue
		}
		args = append(args, s)
		fmt.Fprintf(&b, ` AND %s = %s`, o.d.FieldText(f.Field), p(len(args)))
	}
	rows, err := o.q.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, docstore.Classify(fmt.Errorf("query %s: %w", q.Collection, err))
	}
	defer func() { _ = rows.Close() }()
	var docs []docstore.Document
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		fields, err := docstore.Decode(payload)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, docstore.Classify(fmt.Errorf("iterate %s: %w", q.Collection, err))
	}
	out := q.Apply(docs)
	if out == nil {
		out = []docstore.Document{}
	}
	return out, nil
}

func (o ops) add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := o.newID()
	if err := o.create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (o ops) create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	payload, err := docstore.Encode(docstore.ResolveServerTimestamps(fields, o.now))
	if err != nil {
		return err
	}
	p := o.d.Placeholder
	stmt := fmt.Sprintf(`INSERT INTO documents (collection, id, payload) VALUES (%s, %s, %s) ON CONFLICT (collection, id) DO NOTHING`, p(1), p(2), o.d.PayloadParam(3))
	res, err := o.q.ExecContext(ctx, stmt, collection, id, string(payload))
	if err != nil {
		return docstore.Classify(fmt.Errorf("insert %s/%s: %w", collection, id, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s/%s rows affected: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrAlreadyExists)
	}
	return nil
}

func (o ops) delete(ctx context.Context, collection, id string) error {
	p := o.d.Placeholder
	stmt := fmt.Sprintf(`DELETE FROM documents WHERE collection = %s AND id = %s`, p(1), p(2))
	if _, err := o.q.ExecContext(ctx, stmt, collection, id); err != nil {
		return docstore.Classify(fmt.Errorf("delete %s/%s: %w", collection, id, err))
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
