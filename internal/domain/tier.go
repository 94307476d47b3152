package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the urgency level derived from the time left before a deadline.
// Tiers are ordered: a larger value is more urgent.
type Tier int

const (
	TierNone Tier = iota
	TierApproaching
	TierUrgent
	TierViolated
)

const (
	UrgentWithin      = 4 * time.Hour
	ApproachingWithin = 12 * time.Hour
)

var tierNames = map[Tier]string{
	TierNone:        "NONE",
	TierApproaching: "APPROACHING",
	TierUrgent:      "URGENT",
	TierViolated:    "VIOLATED",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

func ParseTier(s string) (Tier, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == key {
			return tier, nil
		}
	}
	return TierNone, fmt.Errorf("unknown tier %q", s)
}

// EvaluateTier maps the time remaining until deadline onto a Tier.
// Boundaries are inclusive: exactly 12h left is still APPROACHING and exactly
// 4h left is URGENT. Anything past the deadline is VIOLATED.
func EvaluateTier(now, deadline time.Time) Tier {
	remaining := deadline.Sub(now)
	switch {
	case remaining < 0:
		return TierViolated
	case remaining <= UrgentWithin:
		return TierUrgent
	case remaining <= ApproachingWithin:
		return TierApproaching
	default:
		return TierNone
	}
}
