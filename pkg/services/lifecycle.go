package services

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/audit"
	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
	"github.com/veilshare-inc/veilshare-engine/pkg/inspect"
	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
	"github.com/veilshare-inc/veilshare-engine/pkg/repositories"
)

// LifecycleService owns data-access requests and drives their state machine
// from creation through approval, fulfillment, rejection, and cancellation.
type LifecycleService interface {
	// CreateRequest is unrestricted: no access check happens at creation,
	// gating happens at approval and fulfillment. Returns the fresh,
	// monotonically increasing request id.
	CreateRequest(ctx context.Context, requester, dataType, purpose string, requestedLevel models.AccessLevel, ttl time.Duration) (uint64, error)
	// SetStatus is the administrator transition into Approved or Rejected.
	// Rejection also retires an approved request whose window has lapsed.
	SetStatus(ctx context.Context, admin authority.Authority, requestID uint64, next models.RequestStatus) error
	// Fulfill completes an Approved request while its window is still open.
	// An approved-but-expired request fails with ErrExpired and keeps its
	// Approved status; it must be explicitly rejected.
	Fulfill(ctx context.Context, admin authority.Authority, requestID uint64, fulfillmentPointer string) error
	// Cancel is the requester-initiated Pending -> Rejected transition.
	Cancel(ctx context.Context, requestID uint64, caller string) error

	GetDetails(ctx context.Context, requestID uint64) (models.Request, error)
	GetByRequester(ctx context.Context, requester string) iter.Seq[models.Request]
	GetAll(ctx context.Context) iter.Seq[models.Request]
}

type lifecycleService struct {
	requests repositories.RequestRepository
	keeper   *authority.Keeper
	trail    *audit.Trail
	ledger   ledger.Ledger
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex // serializes mutating operations across the ledger commit
}

// NewLifecycleService creates the request lifecycle. A nil now defaults to
// time.Now.
func NewLifecycleService(requests repositories.RequestRepository, keeper *authority.Keeper, trail *audit.Trail, led ledger.Ledger, logger *zap.Logger, now func() time.Time) LifecycleService {
	if now == nil {
		now = time.Now
	}
	return &lifecycleService{
		requests: requests,
		keeper:   keeper,
		trail:    trail,
		ledger:   led,
		logger:   logger,
		now:      now,
	}
}

func (s *lifecycleService) CreateRequest(ctx context.Context, requester, dataType, purpose string, requestedLevel models.AccessLevel, ttl time.Duration) (uint64, error) {
	if requester == "" {
		return 0, fmt.Errorf("requester must not be empty")
	}
	if !requestedLevel.Valid() {
		return 0, fmt.Errorf("invalid access level: %d", requestedLevel)
	}

	// Purposes are stored verbatim; suspicious ones are surfaced on the
	// audit stream but never block creation.
	s.scanPurpose(requester, purpose)

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	req := models.Request{
		RequestID:      s.requests.NextID(),
		Requester:      requester,
		DataType:       dataType,
		Purpose:        purpose,
		RequestedLevel: requestedLevel,
		Status:         models.StatusPending,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(ttl),
	}

	if err := s.commitRequest(ctx, req); err != nil {
		return 0, err
	}
	if err := s.requests.Insert(req); err != nil {
		return 0, err
	}

	s.trail.Record(models.EventRequestCreated, requestSubject(req.RequestID), map[string]string{
		"requester":       requester,
		"data_type":       dataType,
		"requested_level": requestedLevel.String(),
	})
	s.logger.Info("request created",
		zap.Uint64("request_id", req.RequestID),
		zap.String("requester", requester),
		zap.String("data_type", dataType),
		zap.Time("expires_at", req.ExpiresAt),
	)
	return req.RequestID, nil
}

func (s *lifecycleService) SetStatus(ctx context.Context, admin authority.Authority, requestID uint64, next models.RequestStatus) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}
	if next != models.StatusApproved && next != models.StatusRejected {
		return apperrors.ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.requests.Get(requestID)
	if err != nil {
		return err
	}
	if !req.Status.CanTransition(next) {
		return apperrors.ErrInvalidTransition
	}

	req.Status = next
	if err := s.commitRequest(ctx, req); err != nil {
		return err
	}
	if err := s.requests.Put(req); err != nil {
		return err
	}

	s.trail.Record(models.EventRequestStatusChanged, requestSubject(requestID), map[string]string{
		"status": string(next),
	})
	return nil
}

func (s *lifecycleService) Fulfill(ctx context.Context, admin authority.Authority, requestID uint64, fulfillmentPointer string) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.requests.Get(requestID)
	if err != nil {
		return err
	}
	if req.Status != models.StatusApproved {
		return apperrors.ErrInvalidTransition
	}
	// Lazy expiry: the stored status stays Approved. Only an explicit
	// rejection retires an expired request.
	if req.Expired(s.now()) {
		return apperrors.ErrExpired
	}

	req.Status = models.StatusFulfilled
	req.FulfillmentPointer = fulfillmentPointer
	if err := s.commitRequest(ctx, req); err != nil {
		return err
	}
	if err := s.requests.Put(req); err != nil {
		return err
	}

	s.trail.Record(models.EventRequestFulfilled, requestSubject(requestID), map[string]string{
		"fulfillment_pointer": fulfillmentPointer,
	})
	s.logger.Info("request fulfilled",
		zap.Uint64("request_id", requestID),
		zap.String("fulfillment_pointer", fulfillmentPointer),
	)
	return nil
}

func (s *lifecycleService) Cancel(ctx context.Context, requestID uint64, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.requests.Get(requestID)
	if err != nil {
		return err
	}
	if caller != req.Requester {
		return apperrors.ErrForbidden
	}
	if req.Status != models.StatusPending {
		return apperrors.ErrInvalidTransition
	}

	req.Status = models.StatusRejected
	if err := s.commitRequest(ctx, req); err != nil {
		return err
	}
	if err := s.requests.Put(req); err != nil {
		return err
	}

	s.trail.Record(models.EventRequestStatusChanged, requestSubject(requestID), map[string]string{
		"status":    string(models.StatusRejected),
		"cancelled": "true",
	})
	return nil
}

func (s *lifecycleService) GetDetails(ctx context.Context, requestID uint64) (models.Request, error) {
	return s.requests.Get(requestID)
}

func (s *lifecycleService) GetByRequester(ctx context.Context, requester string) iter.Seq[models.Request] {
	return func(yield func(models.Request) bool) {
		for _, id := range s.requests.IDsByRequester(requester) {
			req, err := s.requests.Get(id)
			if err != nil {
				continue
			}
			if !yield(req) {
				return
			}
		}
	}
}

func (s *lifecycleService) GetAll(ctx context.Context) iter.Seq[models.Request] {
	return func(yield func(models.Request) bool) {
		for _, id := range s.requests.IDs() {
			req, err := s.requests.Get(id)
			if err != nil {
				continue
			}
			if !yield(req) {
				return
			}
		}
	}
}

func (s *lifecycleService) commitRequest(ctx context.Context, req models.Request) error {
	entry, err := ledger.NewEntry(ledger.ChannelRequests, requestSubject(req.RequestID), req, s.now())
	if err != nil {
		return err
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("ledger commit failed: %w", err)
	}
	return nil
}

func (s *lifecycleService) scanPurpose(requester, purpose string) {
	if finding := inspect.CheckFreeText("purpose", purpose); finding != nil {
		s.trail.Record(models.EventInjectionAttempt, requester, map[string]string{
			"field":       finding.Field,
			"fingerprint": finding.Fingerprint,
		})
		s.logger.Warn("injection pattern in request purpose",
			zap.String("requester", requester),
			zap.String("fingerprint", finding.Fingerprint),
		)
	}
}

func requestSubject(requestID uint64) string {
	return strconv.FormatUint(requestID, 10)
}

var _ LifecycleService = (*lifecycleService)(nil)
