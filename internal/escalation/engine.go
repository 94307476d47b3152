// Package escalation composes tier evaluation, recipient resolution, the
// notification ledger and dispatch into the engine's entry points.
package escalation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"escalator/internal/dispatch"
	"escalator/internal/domain"
	"escalator/internal/metrics"
	"escalator/internal/render"
)

type CaseStore interface {
	ListEscalated(ctx context.Context) ([]domain.Case, error)
	GetCase(ctx context.Context, id string) (domain.Case, error)
}

// Ledger records which (case, tier) alerts have gone out. TryRecord is the
// only synchronization point between overlapping sweeps.
type Ledger interface {
	TryRecord(ctx context.Context, caseID string, tier domain.Tier) (bool, error)
	HasSent(ctx context.Context, caseID string, tier domain.Tier) (bool, error)
}

type AuditLog interface {
	Append(ctx context.Context, e domain.EscalationLogEntry) error
}

type ExecutiveResolver interface {
	Resolve(ctx context.Context, market, storeNumber string) ([]domain.Recipient, error)
}

type ChainWalker interface {
	Walk(ctx context.Context, start string) ([]string, error)
	ResolveRecipients(ctx context.Context, ids []string) []domain.Recipient
}

type Sender interface {
	SendEach(ctx context.Context, envs []dispatch.Envelope, channels []domain.Channel) []domain.Outcome
}

type Deps struct {
	Cases      CaseStore
	Ledger     Ledger
	Audit      AuditLog
	Executives ExecutiveResolver
	Chain      ChainWalker
	Renderer   *render.Renderer
	Sender     Sender
	Now        func() time.Time
}

type Engine struct {
	cases      CaseStore
	ledger     Ledger
	audit      AuditLog
	executives ExecutiveResolver
	chain      ChainWalker
	renderer   *render.Renderer
	sender     Sender
	now        func() time.Time
}

func New(d Deps) *Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{
		cases:      d.Cases,
		ledger:     d.Ledger,
		audit:      d.Audit,
		executives: d.Executives,
		chain:      d.Chain,
		renderer:   d.Renderer,
		sender:     d.Sender,
		now:        d.Now,
	}
}

var (
	sweepChannels      = []domain.Channel{domain.ChannelEmail}
	escalationChannels = []domain.Channel{domain.ChannelEmail, domain.ChannelChat}
	workOrderChannels  = []domain.Channel{domain.ChannelEmail}
	tagChannels        = []domain.Channel{domain.ChannelEmail, domain.ChannelChat}
)

func (e *Engine) appendAudit(ctx context.Context, entry domain.EscalationLogEntry) {
	entry.ID = ulid.Make().String()
	entry.At = e.now().UTC()
	if err := e.audit.Append(ctx, entry); err != nil {
		log.Printf("audit: append case=%s from=%s to=%s: %v", entry.CaseID, entry.From, entry.To, err)
	}
}

// deliver renders one message per recipient and sends them. A recipient
// whose message cannot be rendered gets a failed outcome on every channel.
func (e *Engine) deliver(ctx context.Context, rcpts []domain.Recipient, channels []domain.Channel, renderFor func(domain.Recipient) (render.Message, error)) []domain.Outcome {
	envs := make([]dispatch.Envelope, 0, len(rcpts))
	var failed []domain.Outcome
	for _, r := range rcpts {
		msg, err := renderFor(r)
		if err != nil {
			log.Printf("render for %s: %v", r.Email, err)
			for _, ch := range channels {
				failed = append(failed, domain.Outcome{
					Recipient: r,
					Channel:   ch,
					Status:    domain.DeliveryFailed,
					Reason:    "render: " + err.Error(),
					Err:       err,
				})
			}
			continue
		}
		envs = append(envs, dispatch.Envelope{Recipient: r, Message: msg})
	}
	outcomes := e.sender.SendEach(ctx, envs, channels)
	return append(outcomes, failed...)
}

func stampCase(outcomes []domain.Outcome, caseID string) []domain.Outcome {
	for i := range outcomes {
		outcomes[i].CaseID = caseID
	}
	return outcomes
}

func summarize(outcomes []domain.Outcome) string {
	sent, skipped, failed := domain.CountOutcomes(outcomes)
	return fmt.Sprintf("%d sent, %d skipped, %d failed", sent, skipped, failed)
}

func recipientIDs(rcpts []domain.Recipient) string {
	ids := make([]string, 0, len(rcpts))
	for _, r := range rcpts {
		if r.UserID != "" {
			ids = append(ids, r.UserID)
		} else {
			ids = append(ids, r.Email)
		}
	}
	return strings.Join(ids, ",")
}

func observeSweep(start time.Time, err error) {
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SweepRuns.WithLabelValues(result).Inc()
}
