package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

func TestReferenceRepository_InsertAndGet(t *testing.T) {
	repo := NewReferenceRepository()

	ref := models.DataReference{DataID: "d1", DataType: "temperature", MetadataPointer: "sha256:abc"}
	require.NoError(t, repo.Insert(ref))
	assert.ErrorIs(t, repo.Insert(ref), apperrors.ErrAlreadyExists)

	got, err := repo.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	_, err = repo.Get("missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReferenceRepository_InsertionOrder(t *testing.T) {
	repo := NewReferenceRepository()
	require.NoError(t, repo.Insert(models.DataReference{DataID: "d1", DataType: "temperature"}))
	require.NoError(t, repo.Insert(models.DataReference{DataID: "d2", DataType: "heart_rate"}))
	require.NoError(t, repo.Insert(models.DataReference{DataID: "d3", DataType: "temperature"}))

	assert.Equal(t, []string{"d1", "d2", "d3"}, repo.IDs())
	assert.Equal(t, []string{"d1", "d3"}, repo.IDsByType("temperature"))
	assert.Empty(t, repo.IDsByType("humidity"))
}

func TestReferenceRepository_Put(t *testing.T) {
	repo := NewReferenceRepository()
	require.NoError(t, repo.Insert(models.DataReference{DataID: "d1", DataType: "temperature", MetadataPointer: "old"}))

	ref, err := repo.Get("d1")
	require.NoError(t, err)
	ref.MetadataPointer = "new"
	require.NoError(t, repo.Put(ref))

	got, err := repo.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.MetadataPointer)

	assert.ErrorIs(t, repo.Put(models.DataReference{DataID: "missing"}), apperrors.ErrNotFound)
}
