// Package memory implements an in-process photo archive for tests.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"growbook/internal/photos/archive"
)

type object struct {
	info archive.Info
	data []byte
}

// Store implements archive.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	objs map[string]object
	now  func() time.Time
}

// New returns an empty in-memory archive.
func New() *Store {
	return &Store{objs: make(map[string]object), now: func() time.Time { return time.Now().UTC() }}
}

// Driver returns archive.DriverMemory.
func (s *Store) Driver() archive.Driver { return archive.DriverMemory }

// Put stores a new object; it fails with archive.ErrExists if key is taken.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts archive.PutOptions) (archive.Info, error) {
	if strings.TrimSpace(key) == "" {
		return archive.Info{}, archive.ErrInvalidKey
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return archive.Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return archive.Info{}, fmt.Errorf("put %s: %w", key, archive.ErrExists)
	}
	sum := md5.Sum(b)
	info := archive.Info{
		Key:          key,
		Size:         int64(len(b)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     archive.CloneMetadata(opts.Metadata),
		LastModified: s.now(),
	}
	s.objs[key] = object{info: info, data: b}
	return copyInfo(info), nil
}

// Get returns object metadata and a reader over a copy of its content.
func (s *Store) Get(_ context.Context, key string) (archive.Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return archive.Info{}, nil, fmt.Errorf("get %s: %w", key, archive.ErrNotFound)
	}
	data := append([]byte(nil), obj.data...)
	return copyInfo(obj.info), io.NopCloser(bytes.NewReader(data)), nil
}

// Head returns object metadata only.
func (s *Store) Head(_ context.Context, key string) (archive.Info, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return archive.Info{}, fmt.Errorf("head %s: %w", key, archive.ErrNotFound)
	}
	return copyInfo(obj.info), nil
}

// Delete removes the object and reports whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	delete(s.objs, key)
	return ok, nil
}

// List returns objects under prefix sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]archive.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]archive.Info, 0, len(s.objs))
	for k, v := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, copyInfo(v.info))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL is not supported in memory.
func (s *Store) PresignURL(context.Context, string, archive.URLOptions) (string, error) {
	return "", archive.ErrUnsupported
}

func copyInfo(in archive.Info) archive.Info {
	in.Metadata = archive.CloneMetadata(in.Metadata)
	return in
}
