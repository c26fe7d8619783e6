// Package archivetest holds behaviour tests every archive backend must pass.
package archivetest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"growbook/internal/photos/archive"
)

// Factory returns a fresh, empty archive for a subtest.
type Factory func(t *testing.T) archive.Store

// Run exercises the archive.Store contract against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetHead", func(t *testing.T) {
		s := newStore(t)
		info, err := s.Put(ctx, "plants/p1/a.jpg", strings.NewReader("jpeg-bytes"), archive.PutOptions{
			ContentType: "image/jpeg",
			Metadata:    map[string]string{"plantid": "p1"},
		})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if info.Key != "plants/p1/a.jpg" || info.Size != int64(len("jpeg-bytes")) {
			t.Fatalf("unexpected put info %#v", info)
		}
		got, rc, err := s.Get(ctx, "plants/p1/a.jpg")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil || string(body) != "jpeg-bytes" {
			t.Fatalf("unexpected body %q (%v)", body, err)
		}
		if got.ContentType != "image/jpeg" {
			t.Fatalf("expected content type kept, got %q", got.ContentType)
		}
		head, err := s.Head(ctx, "plants/p1/a.jpg")
		if err != nil {
			t.Fatalf("Head: %v", err)
		}
		if head.Metadata["plantid"] != "p1" || head.Size != info.Size {
			t.Fatalf("unexpected head %#v", head)
		}
	})

	t.Run("PutIsCreateOnly", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Put(ctx, "k", strings.NewReader("1"), archive.PutOptions{}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if _, err := s.Put(ctx, "k", strings.NewReader("2"), archive.PutOptions{}); !errors.Is(err, archive.ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}
		_, rc, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		defer rc.Close()
		if body, _ := io.ReadAll(rc); string(body) != "1" {
			t.Fatalf("original content must survive, got %q", body)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		s := newStore(t)
		if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, archive.ErrNotFound) {
			t.Fatalf("Get: expected ErrNotFound, got %v", err)
		}
		if _, err := s.Head(ctx, "nope"); !errors.Is(err, archive.ErrNotFound) {
			t.Fatalf("Head: expected ErrNotFound, got %v", err)
		}
		existed, err := s.Delete(ctx, "nope")
		if err != nil || existed {
			t.Fatalf("Delete missing: existed=%v err=%v", existed, err)
		}
	})

	t.Run("ListByPrefixAndDelete", func(t *testing.T) {
		s := newStore(t)
		for _, key := range []string{"plants/p2/b.png", "plants/p1/b.png", "plants/p1/a.png", "other/x"} {
			if _, err := s.Put(ctx, key, strings.NewReader(key), archive.PutOptions{ContentType: "image/png"}); err != nil {
				t.Fatalf("Put %s: %v", key, err)
			}
		}
		list, err := s.List(ctx, "plants/p1/")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 || list[0].Key != "plants/p1/a.png" || list[1].Key != "plants/p1/b.png" {
			t.Fatalf("unexpected listing %#v", list)
		}
		existed, err := s.Delete(ctx, "plants/p1/a.png")
		if err != nil || !existed {
			t.Fatalf("Delete: existed=%v err=%v", existed, err)
		}
		list, err = s.List(ctx, "plants/")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 remaining photos, got %#v", list)
		}
		empty, err := s.List(ctx, "plants/none/")
		if err != nil || empty == nil || len(empty) != 0 {
			t.Fatalf("expected empty non-nil listing, got %#v (%v)", empty, err)
		}
	})
}
