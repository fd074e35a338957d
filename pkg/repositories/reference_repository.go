package repositories

import (
	"sync"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

// ReferenceRepository owns DataReference records and the per-type index.
// References are never deleted; only the metadata pointer may change.
type ReferenceRepository interface {
	Insert(ref models.DataReference) error
	Get(dataID string) (models.DataReference, error)
	Put(ref models.DataReference) error
	// IDs returns all data ids in insertion order.
	IDs() []string
	// IDsByType returns the type index for dataType in insertion order.
	IDsByType(dataType string) []string
}

type referenceRepository struct {
	mu     sync.RWMutex
	refs   map[string]models.DataReference
	order  []string            // insertion order of data ids
	byType map[string][]string // data type -> ids in insertion order
}

// NewReferenceRepository creates an empty reference store.
func NewReferenceRepository() ReferenceRepository {
	return &referenceRepository{
		refs:   make(map[string]models.DataReference),
		byType: make(map[string][]string),
	}
}

func (r *referenceRepository) Insert(ref models.DataReference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.refs[ref.DataID]; exists {
		return apperrors.ErrAlreadyExists
	}

	r.refs[ref.DataID] = ref
	r.order = append(r.order, ref.DataID)
	r.byType[ref.DataType] = append(r.byType[ref.DataType], ref.DataID)
	return nil
}

func (r *referenceRepository) Get(dataID string) (models.DataReference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.refs[dataID]
	if !ok {
		return models.DataReference{}, apperrors.ErrNotFound
	}
	return ref, nil
}

// Put overwrites an existing reference. DataID and DataType are immutable, so
// the indexes stay untouched.
func (r *referenceRepository) Put(ref models.DataReference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.refs[ref.DataID]; !ok {
		return apperrors.ErrNotFound
	}
	r.refs[ref.DataID] = ref
	return nil
}

func (r *referenceRepository) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *referenceRepository) IDsByType(dataType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byType[dataType]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

var _ ReferenceRepository = (*referenceRepository)(nil)
