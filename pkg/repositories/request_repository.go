package repositories

import (
	"sync"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

// RequestRepository owns Request records, the per-requester index, and the
// monotonic request id counter.
type RequestRepository interface {
	// NextID allocates a fresh request id. Ids are monotonically increasing
	// but not necessarily dense: an id burned by a failed ledger commit is
	// never reused.
	NextID() uint64
	Insert(req models.Request) error
	Get(requestID uint64) (models.Request, error)
	Put(req models.Request) error
	// IDs returns all request ids in creation order.
	IDs() []uint64
	// IDsByRequester returns the requester index in creation order.
	IDsByRequester(requester string) []uint64
}

type requestRepository struct {
	mu          sync.RWMutex
	lastID      uint64
	requests    map[uint64]models.Request
	order       []uint64
	byRequester map[string][]uint64
}

// NewRequestRepository creates an empty request store.
func NewRequestRepository() RequestRepository {
	return &requestRepository{
		requests:    make(map[uint64]models.Request),
		byRequester: make(map[string][]uint64),
	}
}

func (r *requestRepository) NextID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	return r.lastID
}

func (r *requestRepository) Insert(req models.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.RequestID]; exists {
		return apperrors.ErrAlreadyExists
	}

	r.requests[req.RequestID] = req
	r.order = append(r.order, req.RequestID)
	r.byRequester[req.Requester] = append(r.byRequester[req.Requester], req.RequestID)
	return nil
}

func (r *requestRepository) Get(requestID uint64) (models.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[requestID]
	if !ok {
		return models.Request{}, apperrors.ErrNotFound
	}
	return req, nil
}

func (r *requestRepository) Put(req models.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[req.RequestID]; !ok {
		return apperrors.ErrNotFound
	}
	r.requests[req.RequestID] = req
	return nil
}

func (r *requestRepository) IDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint64, len(r.order))
	copy(out, r.order)
	return out
}

func (r *requestRepository) IDsByRequester(requester string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byRequester[requester]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

var _ RequestRepository = (*requestRepository)(nil)
