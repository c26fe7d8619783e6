// Package memory provides an in-process document store used by tests and
// ephemeral sessions. It honours the full docstore contract, including
// transactions, so it can stand in for the hosted database.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"growbook/internal/docstore"
)

// Compile-time contract assertions.
var (
	_ docstore.Store      = (*Store)(nil)
	_ docstore.Transactor = (*Store)(nil)
)

type state map[string]map[string]docstore.Fields

func (s state) clone() state {
	out := make(state, len(s))
	for coll, docs := range s {
		cp := make(map[string]docstore.Fields, len(docs))
		for id, fields := range docs {
			cp[id] = fields.Clone()
		}
		out[coll] = cp
	}
	return out
}

func (s state) collection(name string) map[string]docstore.Fields {
	docs, ok := s[name]
	if !ok {
		docs = make(map[string]docstore.Fields)
		s[name] = docs
	}
	return docs
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

// WithIDGenerator overrides the generator used by Add.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Store keeps documents in process memory.
type Store struct {
	mu     sync.RWMutex
	state  state
	nowFn  func() time.Time
	newID  func() string
	closed bool
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: make(state),
		nowFn: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns docstore.DriverMemory.
func (s *Store) Driver() docstore.Driver { return docstore.DriverMemory }

// Ping fails once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("memory store closed: %w", docstore.ErrUnavailable)
	}
	return nil
}

// Close marks the store closed; later calls fail with ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memory store closed: %w", docstore.ErrUnavailable)
	}
	return nil
}

// Get returns a copy of the stored document.
func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return docstore.Document{}, err
	}
	return get(s.state, collection, id)
}

// Query evaluates q against a snapshot of the collection.
func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return query(s.state, q), nil
}

// Add stores fields under a generated id.
func (s *Store) Add(_ context.Context, collection string, fields docstore.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	id := s.newID()
	if err := create(s.state, collection, id, fields, s.nowFn()); err != nil {
		return "", err
	}
	return id, nil
}

// Create stores fields under id unless it is taken.
func (s *Store) Create(_ context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return create(s.state, collection, id, fields, s.nowFn())
}

// Update merges fields into an existing document.
func (s *Store) Update(_ context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	return update(s.state, collection, id, fields, s.nowFn())
}

// Delete removes a document if present.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	delete(s.state.collection(collection), id)
	return nil
}

// RunTransaction executes fn against a transactional copy of the store
// state and commits it only when fn succeeds. The store lock is held for the
// whole call, so transactions are serialised.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx := &transaction{store: s, state: s.state.clone(), now: s.nowFn()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

type transaction struct {
	store *Store
	state state
	now   time.Time
}

func (tx *transaction) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	return get(tx.state, collection, id)
}

func (tx *transaction) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	return query(tx.state, q), nil
}

func (tx *transaction) Add(_ context.Context, collection string, fields docstore.Fields) (string, error) {
	id := tx.store.newID()
	if err := create(tx.state, collection, id, fields, tx.now); err != nil {
		return "", err
	}
	return id, nil
}

func (tx *transaction) Create(_ context.Context, collection, id string, fields docstore.Fields) error {
	return create(tx.state, collection, id, fields, tx.now)
}

func (tx *transaction) Update(_ context.Context, collection, id string, fields docstore.Fields) error {
	return update(tx.state, collection, id, fields, tx.now)
}

func (tx *transaction) Delete(_ context.Context, collection, id string) error {
	delete(tx.state.collection(collection), id)
	return nil
}

func get(st state, collection, id string) (docstore.Document, error) {
	fields, ok := st[collection][id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return docstore.Document{ID: id, Fields: fields.Clone()}, nil
}

func query(st state, q docstore.Query) []docstore.Document {
	docs := st[q.Collection]
	out := make([]docstore.Document, 0, len(docs))
	for id, fields := range docs {
		out = append(out, docstore.Document{ID: id, Fields: fields.Clone()})
	}
	return q.Apply(out)
}

func create(st state, collection, id string, fields docstore.Fields, now time.Time) error {
	docs := st.collection(collection)
	if _, exists := docs[id]; exists {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrAlreadyExists)
	}
	docs[id] = docstore.ResolveServerTimestamps(fields, now)
	return nil
}

func update(st state, collection, id string, fields docstore.Fields, now time.Time) error {
	docs := st.collection(collection)
	current, ok := docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	merged := current.Clone()
	for k, v := range docstore.ResolveServerTimestamps(fields, now) {
		merged[k] = v
	}
	docs[id] = merged
	return nil
}
