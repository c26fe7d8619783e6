// Package archive defines the blob storage contract used to keep plant
// photos. Backends live under internal/infra/photostore.
package archive

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete archive backend.
type Driver string

const (
	DriverMemory     Driver = "memory" // in-process (tests)
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("archive: object not found")
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("archive: object already exists")
	// ErrInvalidKey is returned for empty keys and keys escaping the archive.
	ErrInvalidKey = errors.New("archive: invalid key")
	// ErrUnsupported is returned when an optional capability is not available.
	ErrUnsupported = errors.New("archive: unsupported operation")
)

// PutOptions carries optional object attributes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string // small, flat key-value
}

// URLOptions configures a pre-signed download URL.
type URLOptions struct {
	Expiry time.Duration // default 15m
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key" yaml:"key"`
	Size         int64             `json:"sizeBytes" yaml:"sizeBytes"`
	ContentType  string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	ETag         string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	LastModified time.Time         `json:"lastModified" yaml:"lastModified"`
}

// Store is a create-only object store keyed by slash-separated paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix sorted by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns ErrUnsupported when the backend cannot hand out URLs.
	PresignURL(ctx context.Context, key string, opts URLOptions) (string, error)
	Driver() Driver
}

// CloneMetadata copies a metadata map; nil stays nil.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
