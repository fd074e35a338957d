package models

import "time"

// Entity represents a registered principal: a person, organization, or device
// that can be granted access to shared data.
type Entity struct {
	EntityID     string      `json:"entity_id"`
	EntityType   string      `json:"entity_type"` // free-form tag, e.g. 'hospital', 'research_lab', 'device'
	Principal    string      `json:"principal"`   // external principal address, one-to-one with entity_id
	DefaultLevel AccessLevel `json:"default_level"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
}

// SpecialPermission is a time-bound per-data-type override of an entity's
// default access level. At most one live grant exists per (entity, data type)
// pair; a new grant overwrites the prior one.
type SpecialPermission struct {
	EntityID  string      `json:"entity_id"`
	DataType  string      `json:"data_type"`
	Level     AccessLevel `json:"level"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Live reports whether the grant is still in effect at the given instant.
// Expiry is evaluated lazily at use time; an expired grant stays stored with
// no effect beyond the fallback to the entity's default level.
func (p SpecialPermission) Live(now time.Time) bool {
	return !now.After(p.ExpiresAt)
}
