package services

import (
	"context"
	"fmt"
	"iter"
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

// AccessChecker is the slice of the registry the catalog depends on. Defined
// here so the catalog can be tested against a stub without a full registry.
type AccessChecker interface {
	EffectiveLevel(ctx context.Context, entityID, dataType string) (models.AccessLevel, bool)
}

// CatalogService owns data references and decides, per caller, how much of
// each reference may be disclosed.
type CatalogService interface {
	RegisterReference(ctx context.Context, admin authority.Authority, dataID, dataType, metadataPointer string, sensitivity models.SensitivityLevel) error
	UpdateMetadata(ctx context.Context, admin authority.Authority, dataID, newPointer string) error

	// GetReference returns the caller's view of the reference. Insufficient
	// access blanks the metadata pointer but never fails the call: callers
	// rely on telling "not found" apart from "found but redacted".
	GetReference(ctx context.Context, callerEntity, dataID string) (models.ReferenceView, error)
	// ListAccessibleIDs yields the ids of every reference the caller may see
	// in full, in registration order. The sequence is lazy and restartable;
	// authorization is re-evaluated on every pass, never cached.
	ListAccessibleIDs(ctx context.Context, callerEntity string) iter.Seq[string]
	// ListByType yields the type index in registration order with no access
	// filtering: the listing itself is not sensitive, the content is.
	ListByType(ctx context.Context, dataType string) iter.Seq[string]
}

type catalogService struct {
	refs   repositories.ReferenceRepository
	access AccessChecker
	keeper *authority.Keeper
	trail  *audit.Trail
	ledger ledger.Ledger
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex // serializes mutating operations across the ledger commit
}

// NewCatalogService creates the catalog. A nil now defaults to time.Now.
func NewCatalogService(refs repositories.ReferenceRepository, access AccessChecker, keeper *authority.Keeper, trail *audit.Trail, led ledger.Ledger, logger *zap.Logger, now func() time.Time) CatalogService {
	if now == nil {
		now = time.Now
	}
	return &catalogService{
		refs:   refs,
		access: access,
		keeper: keeper,
		trail:  trail,
		ledger: led,
		logger: logger,
		now:    now,
	}
}

func (s *catalogService) RegisterReference(ctx context.Context, admin authority.Authority, dataID, dataType, metadataPointer string, sensitivity models.SensitivityLevel) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}
	if !sensitivity.Valid() {
		return apperrors.ErrInvalidSensitivity
	}

	s.scanFreeText(dataID, map[string]string{"metadata_pointer": metadataPointer})

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refs.Get(dataID); err == nil {
		return apperrors.ErrAlreadyExists
	}

	ref := models.DataReference{
		DataID:          dataID,
		DataType:        dataType,
		MetadataPointer: metadataPointer,
		Sensitivity:     sensitivity,
		RegisteredAt:    s.now(),
	}

	if err := s.commitReference(ctx, ref); err != nil {
		return err
	}
	if err := s.refs.Insert(ref); err != nil {
		return err
	}

	s.trail.Record(models.EventReferenceRegistered, dataID, map[string]string{
		"data_type":   dataType,
		"sensitivity": sensitivity.String(),
	})
	s.logger.Info("reference registered",
		zap.String("data_id", dataID),
		zap.String("data_type", dataType),
		zap.String("sensitivity", sensitivity.String()),
	)
	return nil
}

// UpdateMetadata overwrites the pointer in place. The engine keeps no audit
// trail of prior pointers beyond the ledger history; callers needing one must
// layer it externally.
func (s *catalogService) UpdateMetadata(ctx context.Context, admin authority.Authority, dataID, newPointer string) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}

	s.scanFreeText(dataID, map[string]string{"metadata_pointer": newPointer})

	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.refs.Get(dataID)
	if err != nil {
		return err
	}

	ref.MetadataPointer = newPointer
	if err := s.commitReference(ctx, ref); err != nil {
		return err
	}
	if err := s.refs.Put(ref); err != nil {
		return err
	}

	s.trail.Record(models.EventReferenceUpdated, dataID, nil)
	return nil
}

func (s *catalogService) GetReference(ctx context.Context, callerEntity, dataID string) (models.ReferenceView, error) {
	ref, err := s.refs.Get(dataID)
	if err != nil {
		return models.ReferenceView{}, err
	}

	if !s.authorized(ctx, callerEntity, ref) {
		return models.Redact(ref), nil
	}
	return models.ReferenceView{DataReference: ref}, nil
}

func (s *catalogService) ListAccessibleIDs(ctx context.Context, callerEntity string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, dataID := range s.refs.IDs() {
			ref, err := s.refs.Get(dataID)
			if err != nil {
				continue
			}
			if !s.authorized(ctx, callerEntity, ref) {
				continue
			}
			if !yield(dataID) {
				return
			}
		}
	}
}

func (s *catalogService) ListByType(ctx context.Context, dataType string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, dataID := range s.refs.IDsByType(dataType) {
			if !yield(dataID) {
				return
			}
		}
	}
}

// authorized applies the disclosure rule: one tier below the nominal
// sensitivity suffices (callerLevel >= sensitivity - 1). The off-by-one slack
// is a fixed compatibility contract and must not be tightened to
// >= sensitivity.
func (s *catalogService) authorized(ctx context.Context, callerEntity string, ref models.DataReference) bool {
	level, ok := s.access.EffectiveLevel(ctx, callerEntity, ref.DataType)
	if !ok {
		return false
	}
	return int(level) >= int(ref.Sensitivity)-1
}

func (s *catalogService) commitReference(ctx context.Context, ref models.DataReference) error {
	entry, err := ledger.NewEntry(ledger.ChannelReferences, ref.DataID, ref, s.now())
	if err != nil {
		return err
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("ledger commit failed: %w", err)
	}
	return nil
}

func (s *catalogService) scanFreeText(subject string, fields map[string]string) {
	for _, finding := range inspect.CheckFields(fields) {
		s.trail.Record(models.EventInjectionAttempt, subject, map[string]string{
			"field":       finding.Field,
			"fingerprint": finding.Fingerprint,
		})
		s.logger.Warn("injection pattern in free-text field",
			zap.String("subject", subject),
			zap.String("field", finding.Field),
			zap.String("fingerprint", finding.Fingerprint),
		)
	}
}

var _ CatalogService = (*catalogService)(nil)
