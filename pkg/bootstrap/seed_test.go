package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veilshare-inc/veilshare-engine/pkg/audit"
	"github.com/veilshare-inc/veilshare-engine/pkg/authority"
	"github.com/veilshare-inc/veilshare-engine/pkg/ledger"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
	"github.com/veilshare-inc/veilshare-engine/pkg/repositories"
	"github.com/veilshare-inc/veilshare-engine/pkg/services"
)

const seedYAML = `
entities:
  - entity_id: clinic-1
    entity_type: professional
    principal: p-clinic-1
    default_level: professional
  - entity_id: researcher-1
    entity_type: researcher
    principal: p-researcher-1
    default_level: researcher

permissions:
  - entity_id: researcher-1
    data_type: heart_rate
    level: professional
    ttl_hours: 168

references:
  - data_id: ref-1
    data_type: temperature
    metadata_pointer: sha256:abc
    sensitivity: restricted
`

func writeSeed(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func newSeederFixture(t *testing.T) (*Seeder, services.RegistryService, services.CatalogService) {
	t.Helper()

	admin := authority.FromToken("test-admin-token")
	keeper := authority.NewKeeper(admin)
	trail := audit.NewTrail(zap.NewNop())
	led := ledger.NewMemoryLedger()
	logger := zap.NewNop()

	registry := services.NewRegistryService(repositories.NewEntityRepository(), keeper, trail, led, logger, nil)
	catalog := services.NewCatalogService(repositories.NewReferenceRepository(), registry, keeper, trail, led, logger, nil)

	return NewSeeder(registry, catalog, admin, 24*time.Hour, logger), registry, catalog
}

func TestLoad(t *testing.T) {
	seed, err := Load(writeSeed(t, seedYAML))
	require.NoError(t, err)

	assert.Len(t, seed.Entities, 2)
	assert.Len(t, seed.Permissions, 1)
	assert.Len(t, seed.References, 1)
	assert.Equal(t, 168, seed.Permissions[0].TTLHours)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeeder_Apply(t *testing.T) {
	ctx := context.Background()
	seeder, registry, catalog := newSeederFixture(t)

	seed, err := Load(writeSeed(t, seedYAML))
	require.NoError(t, err)
	require.NoError(t, seeder.Apply(ctx, seed))

	entity, err := registry.GetEntity(ctx, "clinic-1")
	require.NoError(t, err)
	assert.Equal(t, models.LevelProfessional, entity.DefaultLevel)

	// The seeded grant lifts researcher-1 for heart_rate only.
	level, ok := registry.EffectiveLevel(ctx, "researcher-1", "heart_rate")
	require.True(t, ok)
	assert.Equal(t, models.LevelProfessional, level)
	level, _ = registry.EffectiveLevel(ctx, "researcher-1", "temperature")
	assert.Equal(t, models.LevelResearcher, level)

	view, err := catalog.GetReference(ctx, "clinic-1", "ref-1")
	require.NoError(t, err)
	assert.False(t, view.Redacted)
	assert.Equal(t, "sha256:abc", view.MetadataPointer)
}

func TestSeeder_Apply_Idempotent(t *testing.T) {
	ctx := context.Background()
	seeder, _, _ := newSeederFixture(t)

	seed, err := Load(writeSeed(t, seedYAML))
	require.NoError(t, err)
	require.NoError(t, seeder.Apply(ctx, seed))

	// Re-running against populated state skips existing records.
	require.NoError(t, seeder.Apply(ctx, seed))
}

func TestSeeder_Apply_InvalidLevel(t *testing.T) {
	ctx := context.Background()
	seeder, _, _ := newSeederFixture(t)

	seed, err := Load(writeSeed(t, `
entities:
  - entity_id: e1
    entity_type: lab
    principal: p1
    default_level: overlord
`))
	require.NoError(t, err)
	assert.Error(t, seeder.Apply(ctx, seed))
}
