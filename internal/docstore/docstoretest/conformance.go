// Package docstoretest holds the behavioural suite every docstore backend runs.
package docstoretest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"growbook/internal/docstore"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) docstore.Store

// Run exercises the docstore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"AddGetResolvesServerTimestamp", testAddGet},
		{"GetMissing", testGetMissing},
		{"CreateDuplicate", testCreateDuplicate},
		{"UpdateMerges", testUpdateMerges},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"QueryFiltersOrdersLimits", testQuery},
		{"TransactionCommitAndRollback", testTransaction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func testAddGet(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	id, err := s.Add(ctx, "things", docstore.Fields{
		"name":      "tent",
		"count":     4,
		"tags":      []string{"fan", "light"},
		"empty":     nil,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	doc, err := s.Get(ctx, "things", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.ID != id {
		t.Fatalf("expected id %s, got %s", id, doc.ID)
	}
	if doc.Fields["name"] != "tent" {
		t.Fatalf("unexpected name %v", doc.Fields["name"])
	}
	if got := fmt.Sprint(doc.Fields["count"]); got != "4" {
		t.Fatalf("unexpected count %v", doc.Fields["count"])
	}
	tags, ok := doc.Fields["tags"].([]string)
	if !ok || len(tags) != 2 || tags[0] != "fan" || tags[1] != "light" {
		t.Fatalf("unexpected tags %#v", doc.Fields["tags"])
	}
	if v, ok := doc.Fields["empty"]; !ok || v != nil {
		t.Fatalf("expected stored null, got %#v (present=%v)", v, ok)
	}
	ts, ok := doc.Fields["createdAt"].(time.Time)
	if !ok || ts.IsZero() {
		t.Fatalf("expected resolved timestamp, got %#v", doc.Fields["createdAt"])
	}
}

func testGetMissing(t *testing.T, s docstore.Store) {
	if _, err := s.Get(context.Background(), "things", "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCreateDuplicate(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "things", "a", docstore.Fields{"n": "1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, "things", "a", docstore.Fields{"n": "2"}); !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	doc, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Fields["n"] != "1" {
		t.Fatalf("duplicate create overwrote document: %v", doc.Fields)
	}
}

func testUpdateMerges(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "things", "a", docstore.Fields{"name": "old", "keep": "yes", "size": 2}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Update(ctx, "things", "a", docstore.Fields{"name": "new", "size": nil}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	doc, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Fields["name"] != "new" || doc.Fields["keep"] != "yes" {
		t.Fatalf("unexpected merge result %v", doc.Fields)
	}
	if v, ok := doc.Fields["size"]; !ok || v != nil {
		t.Fatalf("expected size cleared to null, got %#v", v)
	}
}

func testUpdateMissing(t *testing.T, s docstore.Store) {
	err := s.Update(context.Background(), "things", "missing", docstore.Fields{"a": "b"})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDeleteIdempotent(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "things", "a", docstore.Fields{"n": "1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, "things", "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "things", "a"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, "things", "a"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := []struct {
		id, owner string
		at        time.Time
	}{
		{"a", "u1", base},
		{"b", "u1", base.Add(2 * time.Hour)},
		{"c", "u2", base.Add(time.Hour)},
		{"d", "u1", base.Add(time.Hour)},
	}
	for _, d := range seed {
		if err := s.Create(ctx, "things", d.id, docstore.Fields{"ownerId": d.owner, "at": d.at}); err != nil {
			t.Fatalf("Create %s: %v", d.id, err)
		}
	}
	if err := s.Create(ctx, "others", "x", docstore.Fields{"ownerId": "u1", "at": base}); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	docs, err := s.Query(ctx, docstore.NewQuery("things").Where("ownerId", "u1").Sort("at", docstore.Desc))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := ids(docs); got != "b,d,a" {
		t.Fatalf("expected b,d,a got %s", got)
	}
	limited, err := s.Query(ctx, docstore.NewQuery("things").Where("ownerId", "u1").Sort("at", docstore.Asc).WithLimit(2))
	if err != nil {
		t.Fatalf("Query limit: %v", err)
	}
	if got := ids(limited); got != "a,d" {
		t.Fatalf("expected a,d got %s", got)
	}
	none, err := s.Query(ctx, docstore.NewQuery("things").Where("ownerId", "nobody"))
	if err != nil {
		t.Fatalf("Query none: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no documents, got %d", len(none))
	}
}

func testTransaction(t *testing.T, s docstore.Store) {
	txr, ok := s.(docstore.Transactor)
	if !ok {
		t.Skipf("%s store does not support transactions", s.Driver())
	}
	ctx := context.Background()
	if err := s.Create(ctx, "things", "a", docstore.Fields{"n": "1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	boom := errors.New("boom")
	err := txr.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, "things", "a"); err != nil {
			return err
		}
		if err := tx.Update(ctx, "things", "a", docstore.Fields{"n": "2"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	doc, err := s.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Fields["n"] != "1" {
		t.Fatalf("rolled back transaction leaked write: %v", doc.Fields)
	}

	var added string
	err = txr.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		docs, err := tx.Query(ctx, docstore.NewQuery("things").Where("n", "1"))
		if err != nil {
			return err
		}
		if len(docs) != 1 {
			return fmt.Errorf("expected one match, got %d", len(docs))
		}
		added, err = tx.Add(ctx, "things", docstore.Fields{"n": "3", "at": docstore.ServerTimestamp})
		return err
	})
	if err != nil {
		t.Fatalf("RunTransaction: %v", err)
	}
	doc, err = s.Get(ctx, "things", added)
	if err != nil {
		t.Fatalf("Get committed: %v", err)
	}
	if _, ok := doc.Fields["at"].(time.Time); !ok {
		t.Fatalf("expected committed timestamp, got %#v", doc.Fields["at"])
	}
}

func ids(docs []docstore.Document) string {
	out := ""
	for i, d := range docs {
		if i > 0 {
			out += ","
		}
		out += d.ID
	}
	return out
}
