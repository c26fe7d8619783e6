// Package redis stores documents as JSON strings in Redis, with one index set
// per collection. Writes are individual commands, so the store does not
// implement docstore.Transactor.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"growbook/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "growbook:"

// Option configures a Store.
type Option func(*Store)

// WithClock resolves server timestamps from now instead of the Redis TIME command.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = func(context.Context) (time.Time, error) { return now(), nil }
		}
	}
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// Store implements docstore.Store on a go-redis client.
type Store struct {
	client *redis.Client
	prefix string
	nowFn  func(context.Context) (time.Time, error)
	newID  func() string
}

// NewStore connects to redisURL and verifies the connection.
func NewStore(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	s := NewStoreWithClient(client, opts...)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, newID: uuid.NewString}
	s.nowFn = func(ctx context.Context) (time.Time, error) {
		now, err := client.Time(ctx).Result()
		if err != nil {
			return time.Time{}, docstore.Classify(fmt.Errorf("redis time: %w", err))
		}
		return now.UTC(), nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns docstore.DriverRedis.
func (s *Store) Driver() docstore.Driver { return docstore.DriverRedis }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w: %w", docstore.ErrUnavailable, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(collection, id string) string {
	return s.prefix + "doc:" + collection + ":" + id
}

func (s *Store) index(collection string) string {
	return s.prefix + "idx:" + collection
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	raw, err := s.client.Get(ctx, s.key(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, docstore.Classify(fmt.Errorf("get %s/%s: %w", collection, id, err))
	}
	fields, err := docstore.Decode(raw)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, Fields: fields}, nil
}

// Query loads the collection index and evaluates q client side.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	ids, err := s.client.SMembers(ctx, s.index(q.Collection)).Result()
	if err != nil {
		return nil, docstore.Classify(fmt.Errorf("list %s: %w", q.Collection, err))
	}
	if len(ids) == 0 {
		return []docstore.Document{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(q.Collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, docstore.Classify(fmt.Errorf("load %s: %w", q.Collection, err))
	}
	docs := make([]docstore.Document, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between SMEMBERS and MGET
			continue
		}
		fields, err := docstore.Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: ids[i], Fields: fields})
	}
	return q.Apply(docs), nil
}

// Add stores fields under a generated id.
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := s.newID()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Create stores fields under id using SETNX.
func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	payload, err := s.encode(ctx, fields)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(collection, id), payload, 0).Result()
	if err != nil {
		return docstore.Classify(fmt.Errorf("create %s/%s: %w", collection, id, err))
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrAlreadyExists)
	}
	if err := s.client.SAdd(ctx, s.index(collection), id).Err(); err != nil {
		return docstore.Classify(fmt.Errorf("index %s/%s: %w", collection, id, err))
	}
	return nil
}

// Update reads, merges and rewrites the document. Concurrent updates of the
// same document are last-writer-wins per call.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	current, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		current.Fields[k] = v
	}
	payload, err := s.encode(ctx, current.Fields)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(collection, id), payload, 0).Err(); err != nil {
		return docstore.Classify(fmt.Errorf("update %s/%s: %w", collection, id, err))
	}
	return nil
}

// Delete removes the document and its index entry.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(collection, id))
	pipe.SRem(ctx, s.index(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return docstore.Classify(fmt.Errorf("delete %s/%s: %w", collection, id, err))
	}
	return nil
}

func (s *Store) encode(ctx context.Context, fields docstore.Fields) ([]byte, error) {
	needsNow := false
	for _, v := range fields {
		if docstore.IsServerTimestamp(v) {
			needsNow = true
			break
		}
	}
	if needsNow {
		now, err := s.nowFn(ctx)
		if err != nil {
			return nil, err
		}
		fields = docstore.ResolveServerTimestamps(fields, now)
	}
	return docstore.Encode(fields)
}
