package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/audit"
	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
	"github.com/veilshare-inc/veilshare-engine/pkg/repositories"
)

// RegistryService owns entities, their default access levels, and expiring
// per-data-type permission overrides, and answers access-decision queries.
type RegistryService interface {
	RegisterEntity(ctx context.Context, admin authority.Authority, entityID, entityType, principal string, level models.AccessLevel) error
	Deactivate(ctx context.Context, admin authority.Authority, entityID string) error
	Reactivate(ctx context.Context, admin authority.Authority, entityID string) error
	SetDefaultLevel(ctx context.Context, admin authority.Authority, entityID string, level models.AccessLevel) error
	GrantSpecialPermission(ctx context.Context, admin authority.Authority, entityID, dataType string, level models.AccessLevel, ttl time.Duration) error
	RevokeSpecialPermission(ctx context.Context, admin authority.Authority, entityID, dataType string) error

	// TransferAuthority rotates the administrator capability. The current
	// capability must be presented; afterwards only next is accepted, engine
	// wide, since all services share one Keeper.
	TransferAuthority(ctx context.Context, current, next authority.Authority) error

	// CheckAccess reports whether the entity's effective level for dataType
	// satisfies required. Always false for unknown or inactive entities.
	CheckAccess(ctx context.Context, entityID, dataType string, required models.AccessLevel) bool
	// EffectiveLevel resolves the entity's level for dataType: a live special
	// permission wins, an expired one falls back to the default level.
	// ok is false for unknown or inactive entities.
	EffectiveLevel(ctx context.Context, entityID, dataType string) (level models.AccessLevel, ok bool)
	GetEntity(ctx context.Context, entityID string) (models.Entity, error)
}

type registryService struct {
	entities repositories.EntityRepository
	keeper   *authority.Keeper
	trail    *audit.Trail
	ledger   ledger.Ledger
	logger   *zap.Logger
	now      func() time.Time

	// mu serializes mutating operations so the validate / ledger-commit /
	// apply sequence is atomic. It deliberately spans the ledger append:
	// contention is low and a failed commit must leave nothing applied.
	mu sync.Mutex
}

// NewRegistryService creates the registry. A nil now defaults to time.Now;
// tests inject a fake clock to exercise the lazy-expiry rules.
func NewRegistryService(entities repositories.EntityRepository, keeper *authority.Keeper, trail *audit.Trail, led ledger.Ledger, logger *zap.Logger, now func() time.Time) RegistryService {
	if now == nil {
		now = time.Now
	}
	return &registryService{
		entities: entities,
		keeper:   keeper,
		trail:    trail,
		ledger:   led,
		logger:   logger,
		now:      now,
	}
}

// RegisterEntity creates an active entity. The entity id and principal
// address are each assigned at most once; deletion never frees them.
func (s *registryService) RegisterEntity(ctx context.Context, admin authority.Authority, entityID, entityType, principal string, level models.AccessLevel) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("invalid access level: %d", level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.entities.Get(entityID); err == nil {
		return apperrors.ErrAlreadyExists
	}
	if _, err := s.entities.GetByPrincipal(principal); err == nil {
		return apperrors.ErrAlreadyExists
	}

	entity := models.Entity{
		EntityID:     entityID,
		EntityType:   entityType,
		Principal:    principal,
		DefaultLevel: level,
		Active:       true,
		CreatedAt:    s.now(),
	}

	if err := s.commitEntity(ctx, entity); err != nil {
		return err
	}
	if err := s.entities.Insert(entity); err != nil {
		return err
	}

	s.trail.Record(models.EventEntityRegistered, entityID, map[string]string{
		"entity_type":   entityType,
		"default_level": level.String(),
	})
	s.logger.Info("entity registered",
		zap.String("entity_id", entityID),
		zap.String("entity_type", entityType),
		zap.String("default_level", level.String()),
	)
	return nil
}

// Deactivate flips the entity inactive. Idempotent; levels and special
// permissions are untouched.
func (s *registryService) Deactivate(ctx context.Context, admin authority.Authority, entityID string) error {
	return s.setActive(ctx, admin, entityID, false, models.EventEntityDeactivated)
}

// Reactivate flips the entity active again. Idempotent.
func (s *registryService) Reactivate(ctx context.Context, admin authority.Authority, entityID string) error {
	return s.setActive(ctx, admin, entityID, true, models.EventEntityReactivated)
}

func (s *registryService) setActive(ctx context.Context, admin authority.Authority, entityID string, active bool, eventType models.EventType) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entity, err := s.entities.Get(entityID)
	if err != nil {
		return err
	}

	entity.Active = active
	if err := s.commitEntity(ctx, entity); err != nil {
		return err
	}
	if err := s.entities.Put(entity); err != nil {
		return err
	}

	s.trail.Record(eventType, entityID, nil)
	return nil
}

// SetDefaultLevel overwrites the default level unconditionally. No history is
// kept; the change is observable only through subsequent access checks.
func (s *registryService) SetDefaultLevel(ctx context.Context, admin authority.Authority, entityID string, level models.AccessLevel) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("invalid access level: %d", level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entity, err := s.entities.Get(entityID)
	if err != nil {
		return err
	}

	entity.DefaultLevel = level
	if err := s.commitEntity(ctx, entity); err != nil {
		return err
	}
	if err := s.entities.Put(entity); err != nil {
		return err
	}

	s.trail.Record(models.EventDefaultLevelChanged, entityID, map[string]string{
		"default_level": level.String(),
	})
	return nil
}

// GrantSpecialPermission stores or overwrites the (entity, data type) grant
// with expiresAt = now + ttl. Requires an active entity.
func (s *registryService) GrantSpecialPermission(ctx context.Context, admin authority.Authority, entityID, dataType string, level models.AccessLevel, ttl time.Duration) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("invalid access level: %d", level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entity, err := s.entities.Get(entityID)
	if err != nil {
		return err
	}
	if !entity.Active {
		return apperrors.ErrNotActive
	}

	perm := models.SpecialPermission{
		EntityID:  entityID,
		DataType:  dataType,
		Level:     level,
		ExpiresAt: s.now().Add(ttl),
	}

	entry, err := ledger.NewEntry(ledger.ChannelPermissions, permissionLedgerKey(entityID, dataType), perm, s.now())
	if err != nil {
		return err
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("ledger commit failed: %w", err)
	}
	s.entities.PutPermission(perm)

	s.trail.Record(models.EventPermissionGranted, entityID, map[string]string{
		"data_type": dataType,
		"level":     level.String(),
	})
	s.logger.Info("special permission granted",
		zap.String("entity_id", entityID),
		zap.String("data_type", dataType),
		zap.String("level", level.String()),
		zap.Time("expires_at", perm.ExpiresAt),
	)
	return nil
}

// RevokeSpecialPermission deletes the grant outright, expired or not.
func (s *registryService) RevokeSpecialPermission(ctx context.Context, admin authority.Authority, entityID, dataType string) error {
	if err := s.keeper.Verify(admin); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities.GetPermission(entityID, dataType); !ok {
		return apperrors.ErrNoSuchPermission
	}

	tombstone := map[string]string{"entity_id": entityID, "data_type": dataType, "revoked": "true"}
	entry, err := ledger.NewEntry(ledger.ChannelPermissions, permissionLedgerKey(entityID, dataType), tombstone, s.now())
	if err != nil {
		return err
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("ledger commit failed: %w", err)
	}
	if err := s.entities.DeletePermission(entityID, dataType); err != nil {
		return err
	}

	s.trail.Record(models.EventPermissionRevoked, entityID, map[string]string{
		"data_type": dataType,
	})
	return nil
}

func (s *registryService) TransferAuthority(ctx context.Context, current, next authority.Authority) error {
	if err := s.keeper.Transfer(current, next); err != nil {
		return err
	}

	// The capability values themselves never reach the trail.
	s.trail.Record(models.EventAuthorityTransferred, "engine", nil)
	s.logger.Info("administrator capability transferred")
	return nil
}

func (s *registryService) CheckAccess(ctx context.Context, entityID, dataType string, required models.AccessLevel) bool {
	level, ok := s.EffectiveLevel(ctx, entityID, dataType)
	if !ok {
		return false
	}
	return level.Satisfies(required)
}

// EffectiveLevel is the lookup-with-fallback-on-expiry at the core of every
// access decision. Expiry is evaluated here, lazily, at query time; there is
// no background sweep, so an expired grant may stay stored indefinitely with
// no observable effect beyond the fallback.
func (s *registryService) EffectiveLevel(ctx context.Context, entityID, dataType string) (models.AccessLevel, bool) {
	entity, err := s.entities.Get(entityID)
	if err != nil || !entity.Active {
		return models.LevelNone, false
	}

	if perm, ok := s.entities.GetPermission(entityID, dataType); ok && perm.Live(s.now()) {
		return perm.Level, true
	}
	return entity.DefaultLevel, true
}

func (s *registryService) GetEntity(ctx context.Context, entityID string) (models.Entity, error) {
	return s.entities.Get(entityID)
}

func (s *registryService) commitEntity(ctx context.Context, entity models.Entity) error {
	entry, err := ledger.NewEntry(ledger.ChannelEntities, entity.EntityID, entity, s.now())
	if err != nil {
		return err
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("ledger commit failed: %w", err)
	}
	return nil
}

func permissionLedgerKey(entityID, dataType string) string {
	return entityID + ":" + dataType
}

var _ RegistryService = (*registryService)(nil)
