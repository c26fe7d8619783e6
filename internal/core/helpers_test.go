package core_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"growbook/internal/docstore"
	"growbook/internal/infra/docstore/memory"
	"growbook/internal/infra/docstore/redis"
	"growbook/internal/infra/docstore/sqldoc"
	"growbook/internal/infra/docstore/sqlite"
)

// tickingClock returns a strictly increasing time on every call so that
// store-assigned createdAt values are distinct.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newMemoryStore(t *testing.T) docstore.Store {
	t.Helper()
	return memory.NewStore(memory.WithClock(tickingClock()))
}

type storeFactory struct {
	name string
	open func(t *testing.T) docstore.Store
}

// backends lists the stores every repository property is checked against.
func backends() []storeFactory {
	return []storeFactory{
		{"memory", newMemoryStore},
		{"sqlite", func(t *testing.T) docstore.Store {
			t.Helper()
			s, err := sqlite.NewStore(context.Background(), filepath.Join(t.TempDir(), "growbook.db"), sqldoc.WithClock(tickingClock()))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
		{"redis", func(t *testing.T) docstore.Store {
			t.Helper()
			mr := miniredis.RunT(t)
			s, err := redis.NewStore(context.Background(), "redis://"+mr.Addr(), redis.WithClock(tickingClock()))
			if err != nil {
				t.Fatalf("open redis: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store docstore.Store)) {
	t.Helper()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

// plainStore hides any Transactor implementation of the wrapped store so the
// repositories fall back to unguarded check-then-act.
type plainStore struct {
	docstore.Store
}

// countingStore counts every store call.
type countingStore struct {
	docstore.Store
	calls atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.calls.Add(1)
	return s.Store.Get(ctx, collection, id)
}

func (s *countingStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	s.calls.Add(1)
	return s.Store.Query(ctx, q)
}

func (s *countingStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	s.calls.Add(1)
	return s.Store.Add(ctx, collection, fields)
}

func (s *countingStore) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.calls.Add(1)
	return s.Store.Create(ctx, collection, id, fields)
}

func (s *countingStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.calls.Add(1)
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *countingStore) Delete(ctx context.Context, collection, id string) error {
	s.calls.Add(1)
	return s.Store.Delete(ctx, collection, id)
}

func intPtr(v int) *int { return &v }
