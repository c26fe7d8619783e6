package core

import (
	"context"
	"errors"
	"strings"

	"growbook/internal/docstore"
	"growbook/internal/principal"
	"growbook/pkg/domain"
)

// PlantRepository manages plants. Plants are readable by id or QR code by
// anyone; creating, listing and mutating them is scoped to the principal that
// registered them and to environments that principal owns.
type PlantRepository struct {
	repository
}

// NewPlantRepository binds store and resolver.
func NewPlantRepository(store docstore.Store, resolver principal.Resolver, opts ...Option) *PlantRepository {
	return &PlantRepository{repository: newRepository(store, resolver, opts)}
}

// Create registers a plant in one of the caller's environments. The QR code
// must not already be in use. On stores with transactions the uniqueness
// check and insert are atomic; on others two concurrent creates with the
// same code can both succeed.
func (r *PlantRepository) Create(ctx context.Context, in domain.PlantInput) (domain.Plant, error) {
	var created domain.Plant
	err := r.run(ctx, OpCreatePlant, func(ctx context.Context, c *call) error {
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}
		fields := PlantDocument(owner, in)
		qr := fields[domain.FieldQRCode].(string)
		var id string
		err = r.atomically(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if err := r.checkGrowRoom(ctx, tx, OpCreatePlant, fields[domain.FieldGrowRoomID].(string), owner); err != nil {
				return err
			}
			existing, err := tx.Query(ctx, byQRCode(qr))
			if err != nil {
				return storeError(OpCreatePlant, domain.EntityPlant, "", err)
			}
			if len(existing) > 0 {
				return domain.ConflictError{Entity: domain.EntityPlant, Key: domain.FieldQRCode, Value: qr}
			}
			id, err = tx.Add(ctx, domain.CollectionPlants, fields)
			return storeError(OpCreatePlant, domain.EntityPlant, "", err)
		})
		if err != nil {
			return storeError(OpCreatePlant, domain.EntityPlant, "", err)
		}
		c.entityID = id
		doc, err := r.store.Get(ctx, domain.CollectionPlants, id)
		if err != nil {
			return storeError(OpCreatePlant, domain.EntityPlant, id, err)
		}
		created = PlantFromDocument(doc)
		return nil
	})
	return created, err
}

// GetByID returns the plant with id, if any.
func (r *PlantRepository) GetByID(ctx context.Context, id string) (plant domain.Plant, ok bool, err error) {
	err = r.run(ctx, OpGetPlant, func(ctx context.Context, c *call) error {
		c.entityID = id
		doc, err := r.store.Get(ctx, domain.CollectionPlants, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storeError(OpGetPlant, domain.EntityPlant, id, err)
		}
		plant, ok = PlantFromDocument(doc), true
		return nil
	})
	return plant, ok, err
}

// GetOwned returns the plant when it belongs to the caller. A plant owned by
// another principal fails exactly like a missing one, with a NotFoundError.
// Writes attached to a plant resolve it through here.
func (r *PlantRepository) GetOwned(ctx context.Context, id string) (domain.Plant, error) {
	var plant domain.Plant
	err := r.run(ctx, OpGetOwnedPlant, func(ctx context.Context, c *call) error {
		c.entityID = id
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		doc, err := r.loadOwned(ctx, r.store, OpGetOwnedPlant, domain.EntityPlant, domain.CollectionPlants, id, owner)
		if err != nil {
			return err
		}
		plant = PlantFromDocument(doc)
		return nil
	})
	return plant, err
}

// GetByQRCode returns the plant tagged with code, if any.
func (r *PlantRepository) GetByQRCode(ctx context.Context, code string) (plant domain.Plant, ok bool, err error) {
	err = r.run(ctx, OpGetPlantByQRCode, func(ctx context.Context, _ *call) error {
		code = strings.TrimSpace(code)
		if code == "" {
			return domain.ValidationError{Entity: domain.EntityPlant, Field: domain.FieldQRCode, Message: "required"}
		}
		docs, err := r.store.Query(ctx, byQRCode(code).WithLimit(1))
		if err != nil {
			return storeError(OpGetPlantByQRCode, domain.EntityPlant, "", err)
		}
		if len(docs) == 0 {
			return nil
		}
		plant, ok = PlantFromDocument(docs[0]), true
		return nil
	})
	return plant, ok, err
}

// ListByOwner returns the plants registered by the caller, newest first.
func (r *PlantRepository) ListByOwner(ctx context.Context) ([]domain.Plant, error) {
	var out []domain.Plant
	err := r.run(ctx, OpListPlants, func(ctx context.Context, c *call) error {
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		out, err = r.list(ctx, OpListPlants, domain.FieldOwnerID, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByGrowRoom returns the plants in one of the caller's environments,
// newest first. A foreign or missing environment yields ErrNotFoundOrForbidden.
func (r *PlantRepository) ListByGrowRoom(ctx context.Context, environmentID string) ([]domain.Plant, error) {
	var out []domain.Plant
	err := r.run(ctx, OpListPlantsByRoom, func(ctx context.Context, c *call) error {
		c.entityID = environmentID
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		if err := r.checkGrowRoom(ctx, r.store, OpListPlantsByRoom, environmentID, owner); err != nil {
			return err
		}
		out, err = r.list(ctx, OpListPlantsByRoom, domain.FieldGrowRoomID, environmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies patch after re-verifying ownership. Moving a plant requires
// the target environment to belong to the caller. The QR code cannot change.
func (r *PlantRepository) Update(ctx context.Context, id string, patch domain.PlantPatch) error {
	return r.run(ctx, OpUpdatePlant, func(ctx context.Context, c *call) error {
		c.entityID = id
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		if err := patch.Validate(); err != nil {
			return err
		}
		err = r.atomically(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if _, err := r.loadOwned(ctx, tx, OpUpdatePlant, domain.EntityPlant, domain.CollectionPlants, id, owner); err != nil {
				return err
			}
			if room, ok := patch.GrowRoomID.Get(); ok {
				if err := r.checkGrowRoom(ctx, tx, OpUpdatePlant, strings.TrimSpace(room), owner); err != nil {
					return err
				}
			}
			if patch.IsEmpty() {
				return nil
			}
			err := tx.Update(ctx, domain.CollectionPlants, id, PlantPatchDocument(patch))
			if errors.Is(err, docstore.ErrNotFound) {
				// deleted after the ownership check
				return domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
			}
			return storeError(OpUpdatePlant, domain.EntityPlant, id, err)
		})
		return storeError(OpUpdatePlant, domain.EntityPlant, id, err)
	})
}

// Delete removes the plant after re-verifying ownership.
func (r *PlantRepository) Delete(ctx context.Context, id string) error {
	return r.run(ctx, OpDeletePlant, func(ctx context.Context, c *call) error {
		c.entityID = id
		owner, err := r.requirePrincipal(c)
		if err != nil {
			return err
		}
		err = r.atomically(ctx, func(ctx context.Context, tx docstore.Tx) error {
			if _, err := r.loadOwned(ctx, tx, OpDeletePlant, domain.EntityPlant, domain.CollectionPlants, id, owner); err != nil {
				return err
			}
			return storeError(OpDeletePlant, domain.EntityPlant, id, tx.Delete(ctx, domain.CollectionPlants, id))
		})
		return storeError(OpDeletePlant, domain.EntityPlant, id, err)
	})
}

// checkGrowRoom fails with NotFoundError{environment} unless the environment
// exists and belongs to owner.
func (r *PlantRepository) checkGrowRoom(ctx context.Context, rd docstore.Reader, op, environmentID, owner string) error {
	_, err := r.loadOwned(ctx, rd, op, domain.EntityEnvironment, domain.CollectionEnvironments, environmentID, owner)
	return err
}

func (r *PlantRepository) list(ctx context.Context, op, field, value string) ([]domain.Plant, error) {
	q := docstore.NewQuery(domain.CollectionPlants).
		Where(field, value).
		Sort(domain.FieldCreatedAt, docstore.Desc)
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, storeError(op, domain.EntityPlant, "", err)
	}
	out := make([]domain.Plant, 0, len(docs))
	for _, doc := range docs {
		out = append(out, PlantFromDocument(doc))
	}
	return out, nil
}

func byQRCode(code string) docstore.Query {
	return docstore.NewQuery(domain.CollectionPlants).Where(domain.FieldQRCode, code)
}
