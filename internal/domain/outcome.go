package domain

type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliverySkipped DeliveryStatus = "skipped"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Outcome is the result of one (recipient, channel) delivery attempt.
type Outcome struct {
	CaseID    string
	Recipient Recipient
	Channel   Channel
	Status    DeliveryStatus
	Reason    string // skip reason or error text
	Err       error  `json:"-"`
}

// Result is returned by the sweep and by single-case escalation.
type Result struct {
	RunID               string
	Processed           int
	Notified            []string
	SkippedNoRecipients []string
	AlreadyNotified     []string
	ResolutionFailures  []string
	Outcomes            []Outcome
}

// Counts tallies outcomes by delivery status.
func (r Result) Counts() (sent, skipped, failed int) {
	return CountOutcomes(r.Outcomes)
}

func CountOutcomes(outcomes []Outcome) (sent, skipped, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case DeliverySent:
			sent++
		case DeliverySkipped:
			skipped++
		case DeliveryFailed:
			failed++
		}
	}
	return sent, skipped, failed
}
