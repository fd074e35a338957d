package models

import "fmt"

// AccessLevel is the ordered clearance tier assigned to an entity.
// Levels compare numerically: a higher level satisfies any lower requirement.
type AccessLevel int

const (
	LevelNone AccessLevel = iota
	LevelPublic
	LevelResearcher
	LevelProfessional // doctor / professional tier
	LevelAdmin
)

var levelNames = map[AccessLevel]string{
	LevelNone:         "none",
	LevelPublic:       "public",
	LevelResearcher:   "researcher",
	LevelProfessional: "professional",
	LevelAdmin:        "admin",
}

func (l AccessLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is one of the defined tiers.
func (l AccessLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// Satisfies reports whether l grants at least the required tier.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	return l >= required
}

// ParseAccessLevel maps a level name to its AccessLevel.
func ParseAccessLevel(name string) (AccessLevel, error) {
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown access level: %q", name)
}
