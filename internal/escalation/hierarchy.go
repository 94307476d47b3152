package escalation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/oklog/ulid/v2"

	"escalator/internal/domain"
	"escalator/internal/metrics"
	"escalator/internal/render"
)

var ErrMissingCreator = errors.New("work order event has no creator")

// NotifyWorkOrderCompleted emails the creator of a work order and everyone
// above them in the reporting line when the order transitions into
// completed. Other transitions are ignored. Not ledgered: each completion
// event is its own notification.
func (e *Engine) NotifyWorkOrderCompleted(ctx context.Context, ev domain.WorkOrderEvent) (domain.Result, error) {
	res := domain.Result{RunID: ulid.Make().String()}
	if !ev.CompletedTransition() {
		log.Printf("work-order id=%s %s->%s: not a completion, ignored", ev.WorkOrderID, ev.PreviousStatus, ev.Status)
		return res, nil
	}
	if ev.CreatorID == "" {
		return res, fmt.Errorf("work order %s: %w", ev.WorkOrderID, ErrMissingCreator)
	}
	res.Processed = 1
	metrics.HierarchyNotifications.WithLabelValues("work_order_completed").Inc()

	chain, err := e.chain.Walk(ctx, ev.CreatorID)
	if err != nil {
		log.Printf("WARNING: work-order id=%s: manager chain from %s cut short at %v: %v", ev.WorkOrderID, ev.CreatorID, chain, err)
	}
	rcpts := e.chain.ResolveRecipients(ctx, chain)
	if len(rcpts) == 0 {
		log.Printf("work-order id=%s: no reachable recipients in chain %v", ev.WorkOrderID, chain)
		res.SkippedNoRecipients = append(res.SkippedNoRecipients, ev.WorkOrderID)
		return res, nil
	}

	res.Outcomes = stampCase(e.deliver(ctx, rcpts, workOrderChannels, func(r domain.Recipient) (render.Message, error) {
		return e.renderer.WorkOrderCompleted(ev, r)
	}), ev.WorkOrderID)
	res.Notified = append(res.Notified, ev.WorkOrderID)

	summary := summarize(res.Outcomes)
	log.Printf("work-order id=%s chain=%v %s", ev.WorkOrderID, chain, summary)
	e.appendAudit(ctx, domain.EscalationLogEntry{
		CaseID: ev.WorkOrderID,
		From:   ev.PreviousStatus,
		To:     ev.Status,
		Reason: fmt.Sprintf("work order completion notified %s: %s", recipientIDs(rcpts), summary),
	})
	return res, nil
}

// NotifyTagged tells one user, over email and chat, that they were
// mentioned in a case note.
func (e *Engine) NotifyTagged(ctx context.Context, ev domain.TagEvent) (domain.Result, error) {
	res := domain.Result{RunID: ulid.Make().String()}
	if ev.TaggedUserID == "" {
		return res, fmt.Errorf("tag on case %s: no tagged user", ev.CaseID)
	}
	res.Processed = 1
	metrics.HierarchyNotifications.WithLabelValues("tagged").Inc()

	rcpts := e.chain.ResolveRecipients(ctx, []string{ev.TaggedUserID})
	if len(rcpts) == 0 {
		log.Printf("tag case=%s note=%s: user %s has no reachable profile", ev.CaseID, ev.NoteID, ev.TaggedUserID)
		res.SkippedNoRecipients = append(res.SkippedNoRecipients, ev.CaseID)
		return res, nil
	}

	res.Outcomes = stampCase(e.deliver(ctx, rcpts[:1], tagChannels, func(r domain.Recipient) (render.Message, error) {
		return e.renderer.Tagged(ev, r)
	}), ev.CaseID)
	res.Notified = append(res.Notified, ev.CaseID)

	summary := summarize(res.Outcomes)
	log.Printf("tag case=%s note=%s user=%s %s", ev.CaseID, ev.NoteID, ev.TaggedUserID, summary)
	e.appendAudit(ctx, domain.EscalationLogEntry{
		CaseID: ev.CaseID,
		From:   ev.AuthorName,
		To:     ev.TaggedUserID,
		Reason: fmt.Sprintf("tagged in note %s: %s", ev.NoteID, summary),
	})
	return res, nil
}
