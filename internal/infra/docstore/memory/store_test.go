package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"growbook/internal/docstore"
	"growbook/internal/docstore/docstoretest"
	"growbook/internal/infra/docstore/memory"
)

func TestStoreConformance(t *testing.T) {
	docstoretest.Run(t, func(*testing.T) docstore.Store { return memory.NewStore() })
}

func TestStoreUsesInjectedClockAndIDs(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	store := memory.NewStore(
		memory.WithClock(func() time.Time { return fixed }),
		memory.WithIDGenerator(func() string { return "doc-1" }),
	)
	ctx := context.Background()
	id, err := store.Add(ctx, "things", docstore.Fields{"at": docstore.ServerTimestamp})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id != "doc-1" {
		t.Fatalf("expected injected id, got %s", id)
	}
	doc, err := store.Get(ctx, "things", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := doc.Fields["at"]; got != fixed {
		t.Fatalf("expected %v, got %v", fixed, got)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Create(ctx, "things", "a", docstore.Fields{"tags": []string{"x"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, _ := store.Get(ctx, "things", "a")
	doc.Fields["tags"].([]string)[0] = "mutated"
	again, _ := store.Get(ctx, "things", "a")
	if again.Fields["tags"].([]string)[0] != "x" {
		t.Fatalf("store state leaked through returned document")
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	store := memory.NewStore()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	ctx := context.Background()
	if err := store.Ping(ctx); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Ping, got %v", err)
	}
	if _, err := store.Get(ctx, "things", "a"); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Get, got %v", err)
	}
	if _, err := store.Add(ctx, "things", docstore.Fields{}); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Add, got %v", err)
	}
}
