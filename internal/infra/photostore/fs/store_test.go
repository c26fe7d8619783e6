package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"growbook/internal/infra/photostore/fs"
	"growbook/internal/photos/archive"
	"growbook/internal/photos/archive/archivetest"
)

func TestFSArchiveConformance(t *testing.T) {
	archivetest.Run(t, func(t *testing.T) archive.Store {
		s, err := fs.New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})
}

func TestFSArchiveRejectsTraversal(t *testing.T) {
	s, err := fs.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "/etc/passwd", "../escape", "plants/../../x", "photo.jpg.meta"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), archive.PutOptions{}); !errors.Is(err, archive.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestFSArchiveLayoutAndURL(t *testing.T) {
	root := t.TempDir()
	s, err := fs.New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	info, err := s.Put(ctx, "plants/p1/x.png", strings.NewReader("png"), archive.PutOptions{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(info.ETag) != 64 {
		t.Fatalf("expected sha256 etag, got %q", info.ETag)
	}
	if _, err := os.Stat(filepath.Join(root, "plants", "p1", "x.png.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	u, err := s.PresignURL(ctx, "plants/p1/x.png", archive.URLOptions{})
	if err != nil || !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/plants/p1/x.png") {
		t.Fatalf("unexpected url %q (%v)", u, err)
	}

	reopened, err := fs.New(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	head, err := reopened.Head(ctx, "plants/p1/x.png")
	if err != nil || head.ContentType != "image/png" {
		t.Fatalf("expected object to survive reopen, got %#v (%v)", head, err)
	}
}

func TestFSArchiveCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "photos")
	s, err := fs.New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Root() != root {
		t.Fatalf("unexpected root %q", s.Root())
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		t.Fatalf("expected root directory created: %v", err)
	}
}
