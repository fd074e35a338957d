package services

import (
	"context"

	"github.com/veilshare-inc/veilshare-engine/pkg/models"
)

// Reading is one raw record offered for ingestion: a sensor or device
// observation whose payload the engine never interprets.
type Reading struct {
	DeviceID string `json:"device_id" yaml:"device_id"`
	DataType string `json:"data_type" yaml:"data_type"`
	Field    string `json:"field" yaml:"field"`
	Value    string `json:"value" yaml:"value"`
	Priority string `json:"priority" yaml:"priority"` // low, normal, high, critical
}

// GatewayFilter decides whether a reading is worth recording at all. The
// production implementation is an external ML service; the engine only sees
// the admit decision and its confidence.
type GatewayFilter interface {
	Admit(reading Reading) (admit bool, confidence float64)
}

// SensitivityClassifier supplies the sensitivity level for a new reference.
// The production classifier is an external ML service; the engine treats the
// result as an opaque input.
type SensitivityClassifier interface {
	Classify(ctx context.Context, reading Reading) models.SensitivityLevel
}

// ContentFilter decides what payload accompanies a fulfilled request. It
// receives the full references the requester may see and produces the
// shareable record set.
type ContentFilter interface {
	FilterShareable(ctx context.Context, refs []models.DataReference, req models.Request) (payload any, err error)
}

// PriorityGateway is a deterministic stand-in for the gateway ML model:
// readings score by declared priority and pass when the score clears the
// configured confidence threshold.
type PriorityGateway struct {
	Threshold float64
}

var priorityScores = map[string]float64{
	"critical": 1.0,
	"high":     0.9,
	"normal":   0.8,
	"low":      0.5,
}

func (g PriorityGateway) Admit(reading Reading) (bool, float64) {
	score, ok := priorityScores[reading.Priority]
	if !ok {
		score = priorityScores["normal"]
	}
	return score >= g.Threshold, score
}

// StaticClassifier maps data types to sensitivity levels with a configured
// fallback. Unclassifiable data defaults to the most restrictive tier.
type StaticClassifier struct {
	Overrides map[string]models.SensitivityLevel
	Default   models.SensitivityLevel
}

func (c StaticClassifier) Classify(ctx context.Context, reading Reading) models.SensitivityLevel {
	if level, ok := c.Overrides[reading.DataType]; ok {
		return level
	}
	if c.Default.Valid() {
		return c.Default
	}
	return models.SensitivityCritical
}

// LevelContentFilter shares only the references whose disclosure rule the
// request's level satisfies, mirroring the catalog's redaction threshold.
type LevelContentFilter struct{}

// SharedRecord is one reference in a fulfillment payload.
type SharedRecord struct {
	DataID          string `json:"data_id"`
	DataType        string `json:"data_type"`
	MetadataPointer string `json:"metadata_pointer"`
}

func (LevelContentFilter) FilterShareable(ctx context.Context, refs []models.DataReference, req models.Request) (any, error) {
	records := make([]SharedRecord, 0, len(refs))
	for _, ref := range refs {
		if int(req.RequestedLevel) < int(ref.Sensitivity)-1 {
			continue
		}
		records = append(records, SharedRecord{
			DataID:          ref.DataID,
			DataType:        ref.DataType,
			MetadataPointer: ref.MetadataPointer,
		})
	}
	return records, nil
}

var (
	_ GatewayFilter         = PriorityGateway{}
	_ SensitivityClassifier = StaticClassifier{}
	_ ContentFilter         = LevelContentFilter{}
)
