// Package bootstrap seeds a freshly started engine with entities,
// permissions, and references from a YAML file.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
	"github.com/veilshare-inc/veilshare-engine/pkg/services"
)

// SeedEntity is one entity to register at startup.
type SeedEntity struct {
	EntityID     string `yaml:"entity_id"`
	EntityType   string `yaml:"entity_type"`
	Principal    string `yaml:"principal"`
	DefaultLevel string `yaml:"default_level"`
}

// SeedPermission is one special permission to grant at startup.
type SeedPermission struct {
	EntityID string `yaml:"entity_id"`
	DataType string `yaml:"data_type"`
	Level    string `yaml:"level"`
	TTLHours int    `yaml:"ttl_hours"`
}

// SeedReference is one data reference to register at startup.
type SeedReference struct {
	DataID          string `yaml:"data_id"`
	DataType        string `yaml:"data_type"`
	MetadataPointer string `yaml:"metadata_pointer"`
	Sensitivity     string `yaml:"sensitivity"`
}

// SeedFile is the on-disk seed format.
type SeedFile struct {
	Entities    []SeedEntity     `yaml:"entities"`
	Permissions []SeedPermission `yaml:"permissions"`
	References  []SeedReference  `yaml:"references"`
}

// Seeder applies a seed file through the admin-gated service operations, so
// seeded state goes through the same validation and ledger commits as live
// traffic.
type Seeder struct {
	registry      services.RegistryService
	catalog       services.CatalogService
	admin         authority.Authority
	logger        *zap.Logger
	permissionTTL time.Duration
}

// NewSeeder creates a seeder bound to an admin authority.
func NewSeeder(registry services.RegistryService, catalog services.CatalogService, admin authority.Authority, permissionTTL time.Duration, logger *zap.Logger) *Seeder {
	return &Seeder{
		registry:      registry,
		catalog:       catalog,
		admin:         admin,
		logger:        logger.Named("seeder"),
		permissionTTL: permissionTTL,
	}
}

// Load parses a seed file from disk.
func Load(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Apply registers every entity, permission, and reference in the seed file.
// Records that already exist are skipped, so seeding is safe to re-run
// against a populated ledger.
func (s *Seeder) Apply(ctx context.Context, seed *SeedFile) error {
	var applied, skipped int

	for _, e := range seed.Entities {
		level, err := models.ParseAccessLevel(e.DefaultLevel)
		if err != nil {
			return fmt.Errorf("seed entity %s: %w", e.EntityID, err)
		}
		err = s.registry.RegisterEntity(ctx, s.admin, e.EntityID, e.EntityType, e.Principal, level)
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("seed entity %s: %w", e.EntityID, err)
		}
		applied++
	}

	for _, p := range seed.Permissions {
		level, err := models.ParseAccessLevel(p.Level)
		if err != nil {
			return fmt.Errorf("seed permission %s/%s: %w", p.EntityID, p.DataType, err)
		}
		ttl := s.permissionTTL
		if p.TTLHours > 0 {
			ttl = time.Duration(p.TTLHours) * time.Hour
		}
		if err := s.registry.GrantSpecialPermission(ctx, s.admin, p.EntityID, p.DataType, level, ttl); err != nil {
			return fmt.Errorf("seed permission %s/%s: %w", p.EntityID, p.DataType, err)
		}
		applied++
	}

	for _, r := range seed.References {
		sensitivity, err := models.ParseSensitivityLevel(r.Sensitivity)
		if err != nil {
			return fmt.Errorf("seed reference %s: %w", r.DataID, err)
		}
		err = s.catalog.RegisterReference(ctx, s.admin, r.DataID, r.DataType, r.MetadataPointer, sensitivity)
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("seed reference %s: %w", r.DataID, err)
		}
		applied++
	}

	s.logger.Info("seed applied",
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
	)
	return nil
}
