package domain

import "time"

type LedgerEntry struct {
	CaseID string
	Tier   Tier
	SentAt time.Time
}

type EscalationLogEntry struct {
	ID     string
	CaseID string
	From   string
	To     string
	Reason string
	At     time.Time
}

// Channel identifies a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

type ChannelBinding struct {
	Email    string
	Channel  Channel
	Handle   string
	CachedAt time.Time
}

type EscalationType string

const (
	EscalationCritical     EscalationType = "critical"
	EscalationSLAViolation EscalationType = "sla_violation"
)

func ParseEscalationType(s string) (EscalationType, bool) {
	switch s {
	case "critical":
		return EscalationCritical, true
	case "sla_violation", "sla", "slaViolation":
		return EscalationSLAViolation, true
	}
	return "", false
}
