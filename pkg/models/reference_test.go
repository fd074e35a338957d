package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitivityLevel_Valid(t *testing.T) {
	assert.True(t, SensitivityPublic.Valid())
	assert.True(t, SensitivityCritical.Valid())
	assert.False(t, SensitivityLevel(0).Valid())
	assert.False(t, SensitivityLevel(5).Valid())
}

func TestParseSensitivityLevel(t *testing.T) {
	level, err := ParseSensitivityLevel("confidential")
	require.NoError(t, err)
	assert.Equal(t, SensitivityConfidential, level)

	_, err = ParseSensitivityLevel("top-secret")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	ref := DataReference{
		DataID:          "data-1",
		DataType:        "temperature",
		MetadataPointer: "sha256:abc",
		Sensitivity:     SensitivityConfidential,
	}

	view := Redact(ref)
	assert.True(t, view.Redacted)
	assert.Empty(t, view.MetadataPointer)
	// Everything except the pointer survives, so callers can tell
	// "found but redacted" apart from "not found".
	assert.Equal(t, "data-1", view.DataID)
	assert.Equal(t, "temperature", view.DataType)
	assert.Equal(t, SensitivityConfidential, view.Sensitivity)

	// The original is untouched.
	assert.Equal(t, "sha256:abc", ref.MetadataPointer)
}
