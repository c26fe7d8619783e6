// Package firestore adapts Google Cloud Firestore to the docstore contract.
// It is the production backend; timestamps come from Firestore's own clock.
package firestore

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"growbook/internal/docstore"
)

// maxDocIDBytes is Firestore's limit on a document id.
const maxDocIDBytes = 1500

// validDocID reports whether Firestore can address id as a document in a
// collection. Other ids are rejected by the server with InvalidArgument.
func validDocID(id string) bool {
	switch {
	case id == "", id == ".", id == "..", len(id) > maxDocIDBytes:
		return false
	case strings.Contains(id, "/"):
		return false
	case len(id) > 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"):
		return false
	}
	return true
}

// Compile-time contract assertions.
var (
	_ docstore.Store      = (*Store)(nil)
	_ docstore.Transactor = (*Store)(nil)
)

// pingCollection is read (never written) by Ping.
const pingCollection = "_growbook_ping"

// Store implements docstore.Store on a Firestore client.
type Store struct {
	client *firestore.Client
}

// NewStore creates a client for projectID. FIRESTORE_EMULATOR_HOST is honoured
// by the client library.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w: %w", docstore.ErrUnavailable, err)
	}
	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *firestore.Client) *Store { return &Store{client: client} }

// Driver returns docstore.DriverFirestore.
func (s *Store) Driver() docstore.Driver { return docstore.DriverFirestore }

// Ping performs a point read; a missing document counts as reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(pingCollection).Doc("ping").Get(ctx)
	if err == nil || status.Code(err) == codes.NotFound {
		return nil
	}
	return fmt.Errorf("ping firestore: %w: %w", docstore.ErrUnavailable, err)
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }

// Get reads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if !validDocID(id) {
		return docstore.Document{}, fmt.Errorf("get %s/%q: %w", collection, id, docstore.ErrNotFound)
	}
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return docstore.Document{}, mapError(fmt.Sprintf("get %s/%s", collection, id), err)
	}
	return fromSnapshot(snap), nil
}

// Query runs q on the server.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	snaps, err := s.buildQuery(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapError("query "+q.Collection, err)
	}
	return fromSnapshots(snaps), nil
}

// Add stores fields under a Firestore-generated id.
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toData(fields))
	if err != nil {
		return "", mapError("add "+collection, err)
	}
	return ref.ID, nil
}

// Create stores fields under id unless taken.
func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if !validDocID(id) {
		return fmt.Errorf("create %s/%q: invalid document id", collection, id)
	}
	if _, err := s.client.Collection(collection).Doc(id).Create(ctx, toData(fields)); err != nil {
		return mapError(fmt.Sprintf("create %s/%s", collection, id), err)
	}
	return nil
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if !validDocID(id) {
		return fmt.Errorf("update %s/%q: %w", collection, id, docstore.ErrNotFound)
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields)); err != nil {
		return mapError(fmt.Sprintf("update %s/%s", collection, id), err)
	}
	return nil
}

// Delete removes a document; missing documents are ignored by Firestore.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if !validDocID(id) {
		return nil
	}
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return mapError(fmt.Sprintf("delete %s/%s", collection, id), err)
	}
	return nil
}

// RunTransaction runs fn in a Firestore transaction. Firestore may retry fn on
// contention, and writes only surface conflicts at commit.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &transaction{store: s, tx: ftx})
	})
	if err != nil {
		return mapError("transaction", err)
	}
	return nil
}

func (s *Store) buildQuery(q docstore.Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, "==", f.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Direction == docstore.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(o.Field, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

type transaction struct {
	store *Store
	tx    *firestore.Transaction
}

func (t *transaction) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	if !validDocID(id) {
		return docstore.Document{}, fmt.Errorf("get %s/%q: %w", collection, id, docstore.ErrNotFound)
	}
	snap, err := t.tx.Get(t.store.client.Collection(collection).Doc(id))
	if err != nil {
		return docstore.Document{}, mapError(fmt.Sprintf("get %s/%s", collection, id), err)
	}
	return fromSnapshot(snap), nil
}

func (t *transaction) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	snaps, err := t.tx.Documents(t.store.buildQuery(q)).GetAll()
	if err != nil {
		return nil, mapError("query "+q.Collection, err)
	}
	return fromSnapshots(snaps), nil
}

func (t *transaction) Add(_ context.Context, collection string, fields docstore.Fields) (string, error) {
	ref := t.store.client.Collection(collection).NewDoc()
	if err := t.tx.Create(ref, toData(fields)); err != nil {
		return "", mapError("add "+collection, err)
	}
	return ref.ID, nil
}

func (t *transaction) Create(_ context.Context, collection, id string, fields docstore.Fields) error {
	if !validDocID(id) {
		return fmt.Errorf("create %s/%q: invalid document id", collection, id)
	}
	if err := t.tx.Create(t.store.client.Collection(collection).Doc(id), toData(fields)); err != nil {
		return mapError(fmt.Sprintf("create %s/%s", collection, id), err)
	}
	return nil
}

func (t *transaction) Update(_ context.Context, collection, id string, fields docstore.Fields) error {
	if !validDocID(id) {
		return fmt.Errorf("update %s/%q: %w", collection, id, docstore.ErrNotFound)
	}
	if err := t.tx.Update(t.store.client.Collection(collection).Doc(id), toUpdates(fields)); err != nil {
		return mapError(fmt.Sprintf("update %s/%s", collection, id), err)
	}
	return nil
}

func (t *transaction) Delete(_ context.Context, collection, id string) error {
	if !validDocID(id) {
		return nil
	}
	if err := t.tx.Delete(t.store.client.Collection(collection).Doc(id)); err != nil {
		return mapError(fmt.Sprintf("delete %s/%s", collection, id), err)
	}
	return nil
}

func toData(fields docstore.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = toValue(v)
	}
	return out
}

func toUpdates(fields docstore.Fields) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: toValue(v)})
	}
	return updates
}

func toValue(v any) any {
	if docstore.IsServerTimestamp(v) {
		return firestore.ServerTimestamp
	}
	return v
}

func fromSnapshots(snaps []*firestore.DocumentSnapshot) []docstore.Document {
	out := make([]docstore.Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, fromSnapshot(snap))
	}
	return out
}

func fromSnapshot(snap *firestore.DocumentSnapshot) docstore.Document {
	data := snap.Data()
	fields := make(docstore.Fields, len(data))
	for k, v := range data {
		fields[k] = fromValue(v)
	}
	return docstore.Document{ID: snap.Ref.ID, Fields: fields}
}

func fromValue(v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	strs := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return items
		}
		strs = append(strs, s)
	}
	return strs
}

func mapError(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, docstore.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", op, docstore.ErrAlreadyExists)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w: %w", op, docstore.ErrUnavailable, err)
	}
	return docstore.Classify(fmt.Errorf("%s: %w", op, err))
}
