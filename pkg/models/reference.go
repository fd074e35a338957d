package models

import (
	"fmt"
	"time"
)

// SensitivityLevel is the 1..4 ordinal disclosure tag on a data reference.
type SensitivityLevel int

const (
	SensitivityPublic SensitivityLevel = iota + 1
	SensitivityRestricted
	SensitivityConfidential
	SensitivityCritical
)

var sensitivityNames = map[SensitivityLevel]string{
	SensitivityPublic:       "public",
	SensitivityRestricted:   "restricted",
	SensitivityConfidential: "confidential",
	SensitivityCritical:     "critical",
}

func (s SensitivityLevel) String() string {
	if name, ok := sensitivityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sensitivity(%d)", int(s))
}

// Valid reports whether s is inside the 1..4 range.
func (s SensitivityLevel) Valid() bool {
	return s >= SensitivityPublic && s <= SensitivityCritical
}

// ParseSensitivityLevel maps a sensitivity name to its level.
func ParseSensitivityLevel(name string) (SensitivityLevel, error) {
	for level, n := range sensitivityNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown sensitivity level: %q", name)
}

// DataReference is a catalog entry pointing at shared data. It carries
// metadata only; payloads live behind the opaque metadata pointer.
// References are never deleted; only the pointer may be updated.
type DataReference struct {
	DataID          string           `json:"data_id"`
	DataType        string           `json:"data_type"`
	MetadataPointer string           `json:"metadata_pointer"` // opaque, e.g. content hash
	Sensitivity     SensitivityLevel `json:"sensitivity"`
	RegisteredAt    time.Time        `json:"registered_at"`
}

// ReferenceView is what a caller sees when reading a reference. Redacted
// views keep every field except the metadata pointer, so callers can tell
// "found but redacted" apart from "not found".
type ReferenceView struct {
	DataReference
	Redacted bool `json:"redacted"`
}

// Redact returns the view of ref for an unauthorized caller.
func Redact(ref DataReference) ReferenceView {
	ref.MetadataPointer = ""
	return ReferenceView{DataReference: ref, Redacted: true}
}
