package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLevel_Satisfies(t *testing.T) {
	assert.True(t, LevelAdmin.Satisfies(LevelProfessional))
	assert.True(t, LevelProfessional.Satisfies(LevelProfessional))
	assert.True(t, LevelResearcher.Satisfies(LevelPublic))
	assert.False(t, LevelPublic.Satisfies(LevelResearcher))
	assert.False(t, LevelNone.Satisfies(LevelPublic))

	// Every level satisfies none.
	for _, level := range []AccessLevel{LevelNone, LevelPublic, LevelResearcher, LevelProfessional, LevelAdmin} {
		assert.True(t, level.Satisfies(LevelNone))
	}
}

func TestAccessLevel_Valid(t *testing.T) {
	assert.True(t, LevelNone.Valid())
	assert.True(t, LevelAdmin.Valid())
	assert.False(t, AccessLevel(-1).Valid())
	assert.False(t, AccessLevel(5).Valid())
}

func TestParseAccessLevel(t *testing.T) {
	level, err := ParseAccessLevel("professional")
	require.NoError(t, err)
	assert.Equal(t, LevelProfessional, level)

	_, err = ParseAccessLevel("superuser")
	assert.Error(t, err)
}

func TestAccessLevel_String(t *testing.T) {
	assert.Equal(t, "researcher", LevelResearcher.String())
	assert.Equal(t, "level(9)", AccessLevel(9).String())
}
