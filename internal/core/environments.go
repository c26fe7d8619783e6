package core

import (
	"context"
	"errors"

	"growbook/internal/docstore"
	"growbook/internal/principal"
	"growbook/pkg/domain"
)

// EnvironmentRepository manages environments visible only to their owner.
// Records owned by another principal behave exactly like missing ones.
type EnvironmentRepository struct {
	repository
}

// NewEnvironmentRepository binds store and resolver. A nil resolver is treated
// as anonymous, so every call fails with ErrUnauthenticated.
func NewEnvironmentRepository(store docstore.Store, resolver principal.Resolver, opts ...Option) *EnvironmentRepository {
	return &EnvironmentRepository{repository: newRepository(store, resolver, opts)}
}

// Create stores a new environment owned by the caller and returns it as
// re-read from the store, with its generated id and resolved createdAt.
func (r *EnvironmentRepository) Create(ctx context.Context, in domain.EnvironmentInput) (domain.Environment, error) {
	var created domain.Environment
	err := r.run(ctx, OpCreateEnvironment, func(ctx context.Context, c *call) error {
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}
		id, err := r.store.Add(ctx, domain.CollectionEnvironments, EnvironmentDocument(owner, in))
		if err != nil {
			return storeError(OpCreateEnvironment, domain.EntityEnvironment, "", err)
		}
		c.entityID = id
		doc, err := r.store.Get(ctx, domain.CollectionEnvironments, id)
		if err != nil {
			return storeError(OpCreateEnvironment, domain.EntityEnvironment, id, err)
		}
		created = EnvironmentFromDocument(doc)
		return nil
	})
	return created, err
}

// GetByID returns the environment when it exists and belongs to the caller.
// ok is false otherwise; the two cases are not distinguished.
func (r *EnvironmentRepository) GetByID(ctx context.Context, id string) (env domain.Environment, ok bool, err error) {
	err = r.run(ctx, OpGetEnvironment, func(ctx context.Context, c *call) error {
		c.entityID = id
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		doc, err := r.loadOwned(ctx, r.store, OpGetEnvironment, domain.EntityEnvironment, domain.CollectionEnvironments, id, owner)
		if errors.Is(err, domain.ErrNotFoundOrForbidden) {
			return nil
		}
		if err != nil {
			return err
		}
		env, ok = EnvironmentFromDocument(doc), true
		return nil
	})
	return env, ok, err
}

// ListByOwner returns the caller's environments, newest first.
func (r *EnvironmentRepository) ListByOwner(ctx context.Context) ([]domain.Environment, error) {
	out := []domain.Environment{}
	err := r.run(ctx, OpListEnvironments, func(ctx context.Context, c *call) error {
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		q := docstore.NewQuery(domain.CollectionEnvironments).
			Where(domain.FieldOwnerID, owner).
			Sort(domain.FieldCreatedAt, docstore.Desc)
		docs, err := r.store.Query(ctx, q)
		if err != nil {
			return storeError(OpListEnvironments, domain.EntityEnvironment, "", err)
		}
		for _, doc := range docs {
			out = append(out, EnvironmentFromDocument(doc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies patch after re-reading the record to verify ownership.
// Omitted patch fields keep their stored values.
func (r *EnvironmentRepository) Update(ctx context.Context, id string, patch domain.EnvironmentPatch) error {
	return r.run(ctx, OpUpdateEnvironment, func(ctx context.Context, c *call) error {
		c.entityID = id
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		if err := patch.Validate(); err != nil {
			return err
		}
		err = r.atomically(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if _, err := r.loadOwned(ctx, tx, OpUpdateEnvironment, domain.EntityEnvironment, domain.CollectionEnvironments, id, owner); err != nil {
				return err
			}
			if patch.IsEmpty() {
				return nil
			}
			err := tx.Update(ctx, domain.CollectionEnvironments, id, EnvironmentPatchDocument(patch))
			if errors.Is(err, docstore.ErrNotFound) {
				// deleted after the ownership check
				return domain.NotFoundError{Entity: domain.EntityEnvironment, ID: id}
			}
			return storeError(OpUpdateEnvironment, domain.EntityEnvironment, id, err)
		})
		return storeError(OpUpdateEnvironment, domain.EntityEnvironment, id, err)
	})
}

// Delete removes the environment after re-verifying ownership. Plants that
// reference it are left untouched.
func (r *EnvironmentRepository) Delete(ctx context.Context, id string) error {
	return r.run(ctx, OpDeleteEnvironment, func(ctx context.Context, c *call) error {
		c.entityID = id
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		err = r.atomically(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if _, err := r.loadOwned(ctx, tx, OpDeleteEnvironment, domain.EntityEnvironment, domain.CollectionEnvironments, id, owner); err != nil {
				return err
			}
			return storeError(OpDeleteEnvironment, domain.EntityEnvironment, id, tx.Delete(ctx, domain.CollectionEnvironments, id))
		})
		return storeError(OpDeleteEnvironment, domain.EntityEnvironment, id, err)
	})
}
