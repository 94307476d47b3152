// Package render turns cases and hierarchy events into email/chat messages.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"

	"escalator/internal/domain"
)

//go:embed templates/message.html
var messageTemplateRaw string

var messageTemplate = template.Must(template.New("message").Funcs(sprig.HtmlFuncMap()).Parse(messageTemplateRaw))

type Field struct {
	Label string
	Value string
}

// Message is channel-neutral: email uses HTML, chat builds blocks from the
// structured fields and uses Text as the notification fallback.
type Message struct {
	Subject  string
	Headline string
	Intro    string
	Fields   []Field
	Excerpt  string
	Link     string
	Accent   string
	HTML     string
	Text     string
}

type Renderer struct {
	brand   string
	baseURL string
	loc     *time.Location
}

func New(brand, baseURL string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{brand: brand, baseURL: strings.TrimRight(baseURL, "/"), loc: loc}
}

type layoutData struct {
	Message
	RecipientName string
	Brand         string
	Footer        string
}

func (r *Renderer) finish(m Message, rcpt domain.Recipient, footer string) (Message, error) {
	if m.Accent == "" {
		m.Accent = "#2b6cb0"
	}
	var buf bytes.Buffer
	err := messageTemplate.Execute(&buf, layoutData{
		Message:       m,
		RecipientName: rcpt.DisplayName,
		Brand:         r.brand,
		Footer:        footer,
	})
	if err != nil {
		return m, fmt.Errorf("render %q: %w", m.Subject, err)
	}
	m.HTML = buf.String()
	m.Text = plainText(m)
	return m, nil
}

// SLATier renders the sweep alert for a case entering tier, phrased for role.
func (r *Renderer) SLATier(c domain.Case, tier domain.Tier, rcpt domain.Recipient, now time.Time) (Message, error) {
	if tier == domain.TierNone {
		return Message{}, fmt.Errorf("no alert for tier %s", tier)
	}
	var deadline time.Time
	if c.SLADeadline != nil {
		deadline = *c.SLADeadline
	}
	remaining := describeRemaining(now, deadline)

	m := Message{
		Subject:  fmt.Sprintf("[%s] Case %s SLA %s", tier, c.ID, remaining),
		Headline: fmt.Sprintf("SLA %s: case %s", strings.ToLower(tier.String()), c.ID),
		Intro:    tierIntro(tier, rcpt.Role),
		Fields:   append(r.caseFields(c), Field{"SLA deadline", r.formatTime(deadline)}, Field{"Time left", remaining}),
		Link:     r.caseLink(c.ID),
		Accent:   tierAccents[tier],
	}
	return r.finish(m, rcpt, fmt.Sprintf("SLA tier %s", tier))
}

// Escalation renders the immediate single-case alert.
func (r *Renderer) Escalation(c domain.Case, kind domain.EscalationType, rcpt domain.Recipient) (Message, error) {
	label := "Critical escalation"
	accent := "#db3737"
	if kind == domain.EscalationSLAViolation {
		label = "SLA violation"
		accent = tierAccents[domain.TierViolated]
	}
	fields := r.caseFields(c)
	if c.SLADeadline != nil {
		fields = append(fields, Field{"SLA deadline", r.formatTime(*c.SLADeadline)})
	}
	m := Message{
		Subject:  fmt.Sprintf("[%s] Case %s, %s store %s", strings.ToUpper(label), c.ID, c.Market, c.StoreNumber),
		Headline: fmt.Sprintf("%s: case %s", label, c.ID),
		Intro:    escalationIntro(kind, rcpt.Role),
		Fields:   fields,
		Link:     r.caseLink(c.ID),
		Accent:   accent,
	}
	return r.finish(m, rcpt, string(kind))
}

func (r *Renderer) WorkOrderCompleted(ev domain.WorkOrderEvent, rcpt domain.Recipient) (Message, error) {
	title := ev.Title
	if title == "" {
		title = ev.WorkOrderID
	}
	intro := "A work order in your reporting line has been completed."
	if rcpt.UserID == ev.CreatorID {
		intro = "A work order you created has been completed."
	}
	m := Message{
		Subject:  fmt.Sprintf("Work order completed: %s", title),
		Headline: fmt.Sprintf("Work order %s completed", ev.WorkOrderID),
		Intro:    intro,
		Fields: []Field{
			{"Work order", ev.WorkOrderID},
			{"Title", ev.Title},
			{"Previous status", ev.PreviousStatus},
		},
		Link:   r.link("work-orders", ev.WorkOrderID),
		Accent: "#2f855a",
	}
	return r.finish(m, rcpt, "work order completion")
}

func (r *Renderer) Tagged(ev domain.TagEvent, rcpt domain.Recipient) (Message, error) {
	author := ev.AuthorName
	if author == "" {
		author = "A colleague"
	}
	m := Message{
		Subject:  fmt.Sprintf("%s tagged you on case %s", author, ev.CaseID),
		Headline: fmt.Sprintf("You were tagged on case %s", ev.CaseID),
		Intro:    fmt.Sprintf("%s mentioned you in a note.", author),
		Fields:   []Field{{"Case", ev.CaseID}},
		Excerpt:  ev.Excerpt,
		Link:     r.caseLink(ev.CaseID),
	}
	return r.finish(m, rcpt, "note mention")
}

func (r *Renderer) caseFields(c domain.Case) []Field {
	fields := []Field{
		{"Case", c.ID},
		{"Market", c.Market},
		{"Store", c.StoreNumber},
		{"Category", c.Category},
		{"Priority", c.Priority},
		{"Customer", c.CustomerName},
	}
	if c.Summary != "" {
		fields = append(fields, Field{"Summary", c.Summary})
	}
	return fields
}

func (r *Renderer) caseLink(caseID string) string {
	return r.link("cases", caseID)
}

func (r *Renderer) link(kind, id string) string {
	if r.baseURL == "" || id == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", r.baseURL, kind, id)
}

func (r *Renderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format("Mon Jan 2 15:04 MST")
}

func describeRemaining(now, deadline time.Time) string {
	if deadline.IsZero() {
		return "deadline unknown"
	}
	d := deadline.Sub(now).Round(time.Minute)
	if d < 0 {
		return fmt.Sprintf("overdue by %s", formatDuration(-d))
	}
	return fmt.Sprintf("due in %s", formatDuration(d))
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}

func plainText(m Message) string {
	var b strings.Builder
	b.WriteString(m.Headline)
	b.WriteString("\n")
	b.WriteString(m.Intro)
	for _, f := range m.Fields {
		if f.Value == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", f.Label, f.Value)
	}
	if m.Excerpt != "" {
		fmt.Fprintf(&b, "\n> %s", m.Excerpt)
	}
	if m.Link != "" {
		fmt.Fprintf(&b, "\n%s", m.Link)
	}
	return b.String()
}
