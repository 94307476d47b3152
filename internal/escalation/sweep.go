package escalation

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"escalator/internal/domain"
	"escalator/internal/metrics"
	"escalator/internal/render"
)

// RunSLASweep alerts the scoped executives of every escalated case that has
// entered a new SLA tier. It is safe to call on any schedule and to overlap
// with itself: each (case, tier) is claimed in the ledger before dispatch,
// so only one caller ever sends it.
//
// The claim is kept whatever the sends return. A channel outage therefore
// suppresses that tier's alert rather than repeating it on every pass.
// Cancelling ctx stops the sweep before the next claim; a claimed tier is
// still delivered, bounded by the dispatcher's per-send timeout.
func (e *Engine) RunSLASweep(ctx context.Context) (res domain.Result, err error) {
	start := time.Now()
	defer func() { observeSweep(start, err) }()

	res.RunID = ulid.Make().String()
	cases, err := e.cases.ListEscalated(ctx)
	if err != nil {
		log.Printf("sweep run=%s: list escalated cases: %v", res.RunID, err)
		return res, fmt.Errorf("list escalated cases: %w", err)
	}

	now := e.now()
	for _, c := range cases {
		if !c.WatchedBySweep() {
			continue
		}
		if err := ctx.Err(); err != nil {
			log.Printf("sweep run=%s: stopped after %d cases: %v", res.RunID, res.Processed, err)
			return res, err
		}
		res.Processed++
		e.sweepCase(ctx, &res, c, now)
	}

	sent, _, failed := res.Counts()
	log.Printf("sweep run=%s processed=%d notified=%d already=%d no_recipients=%d resolution_failures=%d sent=%d failed=%d",
		res.RunID, res.Processed, len(res.Notified), len(res.AlreadyNotified), len(res.SkippedNoRecipients), len(res.ResolutionFailures), sent, failed)
	return res, nil
}

func (e *Engine) sweepCase(ctx context.Context, res *domain.Result, c domain.Case, now time.Time) {
	tier := domain.EvaluateTier(now, *c.SLADeadline)
	if tier == domain.TierNone {
		return
	}
	decide := func(decision string) {
		metrics.SweepCases.WithLabelValues(decision, tier.String()).Inc()
	}

	// Cheap pre-check only; TryRecord below decides.
	sent, err := e.ledger.HasSent(ctx, c.ID, tier)
	if err != nil {
		log.Printf("sweep run=%s case=%s tier=%s: ledger pre-check: %v", res.RunID, c.ID, tier, err)
	} else if sent {
		res.AlreadyNotified = append(res.AlreadyNotified, c.ID)
		decide("already_notified")
		return
	}

	rcpts, err := e.executives.Resolve(ctx, c.Market, c.StoreNumber)
	if err != nil {
		log.Printf("WARNING: sweep run=%s case=%s tier=%s: %v (will retry next sweep)", res.RunID, c.ID, tier, err)
		res.ResolutionFailures = append(res.ResolutionFailures, c.ID)
		decide("resolution_failed")
		return
	}
	if len(rcpts) == 0 {
		log.Printf("sweep run=%s case=%s tier=%s: no recipients for market=%s store=%s", res.RunID, c.ID, tier, c.Market, c.StoreNumber)
		res.SkippedNoRecipients = append(res.SkippedNoRecipients, c.ID)
		decide("no_recipients")
		return
	}

	if err := ctx.Err(); err != nil {
		log.Printf("sweep run=%s case=%s tier=%s: not claimed: %v", res.RunID, c.ID, tier, err)
		return
	}
	won, err := e.ledger.TryRecord(ctx, c.ID, tier)
	if err != nil {
		log.Printf("WARNING: sweep run=%s case=%s tier=%s: ledger claim: %v (will retry next sweep)", res.RunID, c.ID, tier, err)
		decide("ledger_error")
		return
	}
	metrics.LedgerClaims.WithLabelValues(tier.String(), strconv.FormatBool(won)).Inc()
	if !won {
		res.AlreadyNotified = append(res.AlreadyNotified, c.ID)
		decide("already_notified")
		return
	}

	// The tier is ours now; losing the caller must not lose the alert.
	ctx = context.WithoutCancel(ctx)
	outcomes := stampCase(e.deliver(ctx, rcpts, sweepChannels, func(r domain.Recipient) (render.Message, error) {
		return e.renderer.SLATier(c, tier, r, now)
	}), c.ID)
	res.Outcomes = append(res.Outcomes, outcomes...)
	res.Notified = append(res.Notified, c.ID)
	decide("notified")

	summary := summarize(outcomes)
	log.Printf("sweep run=%s case=%s tier=%s recipients=%d %s", res.RunID, c.ID, tier, len(rcpts), summary)
	e.appendAudit(ctx, domain.EscalationLogEntry{
		CaseID: c.ID,
		From:   "sla_sweep",
		To:     tier.String(),
		Reason: fmt.Sprintf("run %s notified %s: %s", res.RunID, recipientIDs(rcpts), summary),
	})
}
