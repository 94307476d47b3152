package escalation

import (
	"context"
	"fmt"
	"log"

	"github.com/oklog/ulid/v2"

	"escalator/internal/domain"
	"escalator/internal/metrics"
	"escalator/internal/render"
)

// EscalateCase immediately alerts the scoped executives of one case over
// email and chat. It fails only when the case or its recipients cannot be
// loaded; delivery failures are reported in the outcomes.
//
// An sla_violation escalation also claims the VIOLATED tier so the next
// sweep does not send a second violation alert.
func (e *Engine) EscalateCase(ctx context.Context, caseID string, kind domain.EscalationType) (domain.Result, error) {
	res := domain.Result{RunID: ulid.Make().String()}

	c, err := e.cases.GetCase(ctx, caseID)
	if err != nil {
		return res, fmt.Errorf("load case %s: %w", caseID, err)
	}
	rcpts, err := e.executives.Resolve(ctx, c.Market, c.StoreNumber)
	if err != nil {
		return res, fmt.Errorf("escalate case %s: %w", caseID, err)
	}
	res.Processed = 1
	metrics.Escalations.WithLabelValues(string(kind)).Inc()

	if len(rcpts) == 0 {
		log.Printf("escalate run=%s case=%s type=%s: no recipients for market=%s store=%s", res.RunID, c.ID, kind, c.Market, c.StoreNumber)
		res.SkippedNoRecipients = append(res.SkippedNoRecipients, c.ID)
		return res, nil
	}

	res.Outcomes = stampCase(e.deliver(ctx, rcpts, escalationChannels, func(r domain.Recipient) (render.Message, error) {
		return e.renderer.Escalation(c, kind, r)
	}), c.ID)
	res.Notified = append(res.Notified, c.ID)

	summary := summarize(res.Outcomes)
	log.Printf("escalate run=%s case=%s type=%s recipients=%d %s", res.RunID, c.ID, kind, len(rcpts), summary)
	e.appendAudit(ctx, domain.EscalationLogEntry{
		CaseID: c.ID,
		From:   c.Status,
		To:     string(kind),
		Reason: fmt.Sprintf("escalation %s notified %s: %s", res.RunID, recipientIDs(rcpts), summary),
	})

	if kind == domain.EscalationSLAViolation {
		won, err := e.ledger.TryRecord(ctx, c.ID, domain.TierViolated)
		if err != nil {
			log.Printf("escalate run=%s case=%s: ledger claim VIOLATED: %v", res.RunID, c.ID, err)
		} else {
			metrics.LedgerClaims.WithLabelValues(domain.TierViolated.String(), fmt.Sprint(won)).Inc()
		}
	}
	return res, nil
}
