package models

import "time"

// EventType categorizes engine notifications for subscribers and SIEM filtering.
type EventType string

const (
	EventEntityRegistered     EventType = "entity_registered"
	EventEntityDeactivated    EventType = "entity_deactivated"
	EventEntityReactivated    EventType = "entity_reactivated"
	EventDefaultLevelChanged  EventType = "default_level_changed"
	EventPermissionGranted    EventType = "permission_granted"
	EventPermissionRevoked    EventType = "permission_revoked"
	EventReferenceRegistered  EventType = "reference_registered"
	EventReferenceUpdated     EventType = "reference_updated"
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestFulfilled     EventType = "request_fulfilled"
	EventAuthorityTransferred EventType = "authority_transferred"
	EventInjectionAttempt     EventType = "injection_attempt"
)

// Event is one record in the engine's append-only notification stream.
// Seq is a per-process monotonic sequence number assigned at record time;
// delivery to subscribers is at-least-once.
type Event struct {
	Seq       uint64            `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"event_type"`
	Subject   string            `json:"subject"` // entity id, data id, or request id
	Details   map[string]string `json:"details,omitempty"`
}
