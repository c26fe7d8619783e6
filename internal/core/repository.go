// Package core implements the owner-scoped repositories for environments and
// plants on top of the docstore contract, plus the record normalizer and the
// observability hooks shared by both.
package core

import (
	"context"
	"errors"
	"time"

	"growbook/internal/docstore"
	"growbook/internal/principal"
	"growbook/pkg/domain"
)

// Operation names reported to metrics, traces and audit.
const (
	OpCreateEnvironment = "create_environment"
	OpGetEnvironment    = "get_environment"
	OpListEnvironments  = "list_environments"
	OpUpdateEnvironment = "update_environment"
	OpDeleteEnvironment = "delete_environment"
	OpCreatePlant       = "create_plant"
	OpGetPlant          = "get_plant"
	OpGetPlantByQRCode  = "get_plant_by_qr_code"
	OpGetOwnedPlant     = "get_owned_plant"
	OpListPlants        = "list_plants"
	OpListPlantsByRoom  = "list_plants_by_grow_room"
	OpUpdatePlant       = "update_plant"
	OpDeletePlant       = "delete_plant"
)

type operationMeta struct {
	entity domain.EntityType
	action Action
}

// auditedOperations lists the mutations that produce audit entries.
var auditedOperations = map[string]operationMeta{
	OpCreateEnvironment: {domain.EntityEnvironment, ActionCreate},
	OpUpdateEnvironment: {domain.EntityEnvironment, ActionUpdate},
	OpDeleteEnvironment: {domain.EntityEnvironment, ActionDelete},
	OpCreatePlant:       {domain.EntityPlant, ActionCreate},
	OpUpdatePlant:       {domain.EntityPlant, ActionUpdate},
	OpDeletePlant:       {domain.EntityPlant, ActionDelete},
}

// repository holds what both record repositories share. It keeps no state
// between calls; every read goes to the store.
type repository struct {
	store    docstore.Store
	resolver principal.Resolver
	opts     repositoryOptions
}

func newRepository(store docstore.Store, resolver principal.Resolver, opts []Option) repository {
	if resolver == nil {
		resolver = principal.Anonymous
	}
	return repository{store: store, resolver: resolver, opts: applyOptions(opts)}
}

// call carries per-invocation details filled in by the operation body.
type call struct {
	principalID string
	entityID    string
}

func (r repository) requirePrincipal(c *call) (string, error) {
	id, ok := principal.Resolve(r.resolver)
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	c.principalID = id
	return id, nil
}

// run wraps an operation with tracing, metrics, audit and error logging.
func (r repository) run(ctx context.Context, op string, fn func(ctx context.Context, c *call) error) error {
	start := r.opts.clock.Now()
	ctx, span := r.opts.tracer.Start(ctx, op)
	c := &call{}
	err := fn(ctx, c)
	duration := r.opts.clock.Now().Sub(start)
	span.End(err)
	r.opts.metrics.Observe(ctx, op, OutcomeOf(err), duration)
	r.recordAudit(ctx, op, c, duration, err)
	if err != nil && OutcomeOf(err) == OutcomeError {
		r.opts.logger.Error("repository operation failed", "operation", op, "id", c.entityID, "error", err)
	}
	return err
}

func (r repository) recordAudit(ctx context.Context, op string, c *call, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation:   op,
		Entity:      meta.entity,
		Action:      meta.action,
		EntityID:    c.entityID,
		PrincipalID: c.principalID,
		Status:      AuditStatusSuccess,
		Duration:    duration,
		Timestamp:   r.opts.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	r.opts.audit.Record(ctx, entry)
}

// atomically runs a check-then-act sequence inside a store transaction when
// the backend supports one. Otherwise the steps run directly against the
// store and a concurrent writer can interleave between them.
func (r repository) atomically(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	if txr, ok := r.store.(docstore.Transactor); ok {
		return txr.RunTransaction(ctx, fn)
	}
	return fn(ctx, r.store)
}

// loadOwned reads a document and checks it belongs to owner. A missing
// document and a foreign one produce the same NotFoundError.
func (r repository) loadOwned(ctx context.Context, rd docstore.Reader, op string, entity domain.EntityType, collection, id, owner string) (docstore.Document, error) {
	doc, err := rd.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return docstore.Document{}, domain.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return docstore.Document{}, storeError(op, entity, id, err)
	}
	if stored, _ := doc.Fields[domain.FieldOwnerID].(string); stored != owner {
		r.opts.logger.Debug("ownership check denied", "operation", op, "entity", string(entity), "id", id)
		return docstore.Document{}, domain.NotFoundError{Entity: entity, ID: id}
	}
	return doc, nil
}

// storeError wraps a backend failure with operation context. Errors that are
// already domain failures pass through.
func storeError(op string, entity domain.EntityType, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StoreError
	switch {
	case errors.As(err, &se),
		errors.Is(err, domain.ErrNotFoundOrForbidden),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnauthenticated):
		return err
	}
	return &domain.StoreError{
		Op:          op,
		Entity:      entity,
		ID:          id,
		Unavailable: errors.Is(err, docstore.ErrUnavailable),
		Err:         err,
	}
}
