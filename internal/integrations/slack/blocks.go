package slackbot

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"escalator/internal/render"
)

const (
	maxHeaderLen     = 150
	maxSectionFields = 10
)

// BuildBlocks lays a rendered message out as Block Kit: header, intro,
// case fields, optional excerpt and a link footer.
func BuildBlocks(m render.Message) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, truncate(m.Headline, maxHeaderLen), false, false),
		),
	}

	if m.Intro != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, m.Intro, false, false),
			nil, nil,
		))
	}

	var fields []*slack.TextBlockObject
	for _, f := range m.Fields {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*%s*\n%s", f.Label, f.Value), false, false))
	}
	for len(fields) > 0 {
		n := min(len(fields), maxSectionFields)
		blocks = append(blocks, slack.NewSectionBlock(nil, fields[:n], nil))
		fields = fields[n:]
	}

	if m.Excerpt != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, quote(m.Excerpt), false, false),
			nil, nil,
		))
	}

	if m.Link != "" {
		blocks = append(blocks,
			slack.NewDividerBlock(),
			slack.NewContextBlock("",
				slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("<%s|Open in the case tool>", m.Link), false, false),
			),
		)
	}
	return blocks
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
