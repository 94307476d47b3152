package domain

import "time"

// CaseStatusEscalated marks a case that the feedback subsystem has escalated
// and that the SLA sweep should watch.
const CaseStatusEscalated = "ESCALATED"

// Case is the escalated feedback record. The engine only reads it.
type Case struct {
	ID            string
	Market        string
	StoreNumber   string
	Category      string
	Priority      string
	Status        string
	Summary       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	EscalatedAt   time.Time
	SLADeadline   *time.Time // nil when no SLA applies
}

// WatchedBySweep reports whether the SLA sweep should evaluate the case.
func (c Case) WatchedBySweep() bool {
	return c.Status == CaseStatusEscalated && c.SLADeadline != nil
}

type WorkOrderEvent struct {
	WorkOrderID    string
	Title          string
	CreatorID      string
	PreviousStatus string
	Status         string
}

const WorkOrderStatusCompleted = "completed"

// CompletedTransition is true only for the step into "completed"; repeated
// completed->completed updates are not a transition.
func (e WorkOrderEvent) CompletedTransition() bool {
	return e.Status == WorkOrderStatusCompleted && e.PreviousStatus != WorkOrderStatusCompleted
}

type TagEvent struct {
	CaseID       string
	NoteID       string
	TaggedUserID string
	AuthorName   string
	Excerpt      string
}
