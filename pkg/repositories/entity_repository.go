// Package repositories holds the engine's authoritative state: one in-memory
// store per component, each owning its records exclusively. Reads take a
// shared lock and observe a consistent snapshot; writers are additionally
// serialized by the owning service so every mutation appears atomic.
package repositories

import (
	"sync"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

// EntityRepository owns Entity and SpecialPermission records.
type EntityRepository interface {
	Insert(entity models.Entity) error
	Get(entityID string) (models.Entity, error)
	GetByPrincipal(principal string) (models.Entity, error)
	Put(entity models.Entity) error
	PutPermission(perm models.SpecialPermission)
	GetPermission(entityID, dataType string) (models.SpecialPermission, bool)
	DeletePermission(entityID, dataType string) error
}

type permissionKey struct {
	entityID string
	dataType string
}

// entityRepository is the in-memory implementation. Entities are deactivated,
// never removed, so the maps only grow.
type entityRepository struct {
	mu          sync.RWMutex
	entities    map[string]models.Entity
	byPrincipal map[string]string // principal -> entity id
	permissions map[permissionKey]models.SpecialPermission
}

// NewEntityRepository creates an empty entity store.
func NewEntityRepository() EntityRepository {
	return &entityRepository{
		entities:    make(map[string]models.Entity),
		byPrincipal: make(map[string]string),
		permissions: make(map[permissionKey]models.SpecialPermission),
	}
}

// Insert stores a new entity. Returns ErrAlreadyExists when either the entity
// id or the principal address is already taken; the id is assigned at most
// once, even across deactivation.
func (r *entityRepository) Insert(entity models.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[entity.EntityID]; exists {
		return apperrors.ErrAlreadyExists
	}
	if _, exists := r.byPrincipal[entity.Principal]; exists {
		return apperrors.ErrAlreadyExists
	}

	r.entities[entity.EntityID] = entity
	r.byPrincipal[entity.Principal] = entity.EntityID
	return nil
}

func (r *entityRepository) Get(entityID string) (models.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[entityID]
	if !ok {
		return models.Entity{}, apperrors.ErrNotFound
	}
	return entity, nil
}

func (r *entityRepository) GetByPrincipal(principal string) (models.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entityID, ok := r.byPrincipal[principal]
	if !ok {
		return models.Entity{}, apperrors.ErrNotFound
	}
	return r.entities[entityID], nil
}

// Put overwrites an existing entity record. The principal and id are
// immutable, so the indexes need no maintenance here.
func (r *entityRepository) Put(entity models.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[entity.EntityID]; !ok {
		return apperrors.ErrNotFound
	}
	r.entities[entity.EntityID] = entity
	return nil
}

// PutPermission stores or overwrites the (entity, data type) grant.
func (r *entityRepository) PutPermission(perm models.SpecialPermission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions[permissionKey{perm.EntityID, perm.DataType}] = perm
}

// GetPermission returns the stored grant regardless of expiry; the caller
// decides whether it is still live.
func (r *entityRepository) GetPermission(entityID, dataType string) (models.SpecialPermission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perm, ok := r.permissions[permissionKey{entityID, dataType}]
	return perm, ok
}

func (r *entityRepository) DeletePermission(entityID, dataType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := permissionKey{entityID, dataType}
	if _, ok := r.permissions[key]; !ok {
		return apperrors.ErrNoSuchPermission
	}
	delete(r.permissions, key)
	return nil
}

var _ EntityRepository = (*entityRepository)(nil)
