package api

import "escalator/internal/domain"

type countsView struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type outcomeView struct {
	CaseID    string `json:"case_id"`
	Recipient string `json:"recipient"`
	Role      string `json:"role,omitempty"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

type resultView struct {
	RunID               string        `json:"run_id"`
	Processed           int           `json:"processed"`
	Notified            []string      `json:"notified"`
	SkippedNoRecipients []string      `json:"skipped_no_recipients"`
	AlreadyNotified     []string      `json:"already_notified"`
	ResolutionFailures  []string      `json:"resolution_failures"`
	Counts              countsView    `json:"counts"`
	Outcomes            []outcomeView `json:"outcomes"`
}

func newResultView(r domain.Result) resultView {
	v := resultView{
		RunID:               r.RunID,
		Processed:           r.Processed,
		Notified:            nonNil(r.Notified),
		SkippedNoRecipients: nonNil(r.SkippedNoRecipients),
		AlreadyNotified:     nonNil(r.AlreadyNotified),
		ResolutionFailures:  nonNil(r.ResolutionFailures),
		Outcomes:            make([]outcomeView, 0, len(r.Outcomes)),
	}
	v.Counts.Sent, v.Counts.Skipped, v.Counts.Failed = r.Counts()
	for _, o := range r.Outcomes {
		v.Outcomes = append(v.Outcomes, outcomeView{
			CaseID:    o.CaseID,
			Recipient: o.Recipient.Email,
			Role:      string(o.Recipient.Role),
			Channel:   string(o.Channel),
			Status:    string(o.Status),
			Reason:    o.Reason,
		})
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
