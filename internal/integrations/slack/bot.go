package slackbot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"escalator/internal/config"
	"escalator/internal/domain"
)

const commandTimeout = 5 * time.Minute

// Escalator is the engine surface the slash commands drive.
type Escalator interface {
	RunSLASweep(ctx context.Context) (domain.Result, error)
	EscalateCase(ctx context.Context, caseID string, kind domain.EscalationType) (domain.Result, error)
}

type ephemeralPoster interface {
	PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error)
}

// StartSlackBot serves slash commands over Socket Mode until the connection
// is closed.
func StartSlackBot(cfg config.Config, api *slack.Client, engine Escalator) error {
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeConnected:
				log.Println("Slack bot connected via Socket Mode")
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go handleSlashCommand(api, engine, cfg, cmd)
			case socketmode.EventTypeEventsAPI, socketmode.EventTypeInteractive:
				client.Ack(*evt.Request)
			}
		}
	}()

	return client.Run()
}

func handleSlashCommand(api ephemeralPoster, engine Escalator, cfg config.Config, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/escalate":
		handleEscalate(api, engine, cfg, cmd)
	case "/sla-sweep":
		handleSweep(api, engine, cfg, cmd)
	}
}

func handleEscalate(api ephemeralPoster, engine Escalator, cfg config.Config, cmd slack.SlashCommand) {
	if !cfg.IsManagerID(cmd.UserID) {
		postEphemeral(api, cmd, "Sorry, only managers can use this command.")
		log.Printf("escalate denied user=%s", cmd.UserID)
		return
	}

	caseID, kind, err := parseEscalateArgs(cmd.Text)
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := engine.EscalateCase(ctx, caseID, kind)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error escalating case %s: %v", caseID, err))
		log.Printf("escalate error user=%s case=%s type=%s: %v", cmd.UserID, caseID, kind, err)
		return
	}
	postEphemeral(api, cmd, formatEscalateSummary(caseID, kind, result))
	log.Printf("escalate done user=%s case=%s type=%s run=%s", cmd.UserID, caseID, kind, result.RunID)
}

func handleSweep(api ephemeralPoster, engine Escalator, cfg config.Config, cmd slack.SlashCommand) {
	if !cfg.IsManagerID(cmd.UserID) {
		postEphemeral(api, cmd, "Sorry, only managers can use this command.")
		log.Printf("sla-sweep denied user=%s", cmd.UserID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := engine.RunSLASweep(ctx)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error running SLA sweep: %v", err))
		log.Printf("sla-sweep error user=%s: %v", cmd.UserID, err)
		return
	}
	postEphemeral(api, cmd, formatSweepSummary(result))
}

func parseEscalateArgs(text string) (string, domain.EscalationType, error) {
	const usage = "Usage: `/escalate <case-id> [critical|sla]`"
	args := strings.Fields(text)
	if len(args) == 0 || len(args) > 2 {
		return "", "", fmt.Errorf("%s", usage)
	}
	kind := domain.EscalationCritical
	if len(args) == 2 {
		var ok bool
		kind, ok = domain.ParseEscalationType(strings.ToLower(args[1]))
		if !ok {
			return "", "", fmt.Errorf("Unknown escalation type %q. %s", args[1], usage)
		}
	}
	return args[0], kind, nil
}

func formatEscalateSummary(caseID string, kind domain.EscalationType, r domain.Result) string {
	if len(r.SkippedNoRecipients) > 0 {
		return fmt.Sprintf("Case %s (%s): no executives are configured for this case's scope, nothing sent.", caseID, kind)
	}
	sent, skipped, failed := r.Counts()
	return fmt.Sprintf("Case %s escalated (%s): %d sent, %d skipped, %d failed.", caseID, kind, sent, skipped, failed)
}

func formatSweepSummary(r domain.Result) string {
	sent, _, failed := r.Counts()
	lines := []string{
		fmt.Sprintf("*SLA sweep %s*", r.RunID),
		fmt.Sprintf("Cases checked: %d", r.Processed),
		fmt.Sprintf("Cases notified: %d (%d sent, %d failed)", len(r.Notified), sent, failed),
	}
	if len(r.SkippedNoRecipients) > 0 {
		lines = append(lines, fmt.Sprintf("No recipients: %s", strings.Join(r.SkippedNoRecipients, ", ")))
	}
	if len(r.ResolutionFailures) > 0 {
		lines = append(lines, fmt.Sprintf("Recipient lookup failed: %s", strings.Join(r.ResolutionFailures, ", ")))
	}
	return strings.Join(lines, "\n")
}

func postEphemeral(api ephemeralPoster, cmd slack.SlashCommand, text string) {
	_, err := api.PostEphemeral(cmd.ChannelID, cmd.UserID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}
