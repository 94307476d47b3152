package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"escalator/internal/api"
	"escalator/internal/config"
	"escalator/internal/domain"
	slackbot "escalator/internal/integrations/slack"
	"escalator/internal/schedule"
)

const (
	sweepTimeout    = 10 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func Main() {
	if err := NewRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "escalator",
		Short:         "SLA escalation and notification engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.AddCommand(
		newServeCommand(),
		newSweepCommand(),
		newEscalateCommand(),
		newHistoryCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sweep scheduler, HTTP API and Slack commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadConfig()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	sched, err := schedule.New(cfg.SweepSchedule, cfg.Location, rt.engine, sweepTimeout)
	if err != nil {
		return fmt.Errorf("sweep schedule: %w", err)
	}
	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	if cfg.SocketModeConfigured() {
		go func() {
			if err := slackbot.StartSlackBot(cfg, rt.slack, rt.engine); err != nil {
				log.Printf("Slack bot error: %v", err)
			}
		}()
	} else {
		log.Println("Slack commands disabled (slack_app_token not set)")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.New(rt.engine, cfg.APIToken).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP API listening on %s", cfg.ListenAddr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	<-schedDone
	return nil
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one SLA sweep and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), sweepTimeout)
			defer cancel()
			res, err := rt.engine.RunSLASweep(ctx)
			if err != nil {
				return err
			}
			writeResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newEscalateCommand() *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "escalate CASE_ID",
		Short: "Immediately escalate one case to its scoped executives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := domain.ParseEscalationType(kindFlag)
			if !ok {
				return fmt.Errorf("invalid --type %q: want critical or sla_violation", kindFlag)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.engine.EscalateCase(cmd.Context(), args[0], kind)
			if err != nil {
				return err
			}
			writeResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "type", string(domain.EscalationCritical), "escalation type: critical or sla_violation")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history CASE_ID",
		Short: "Show the SLA tiers notified and the audit log for one case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			caseID := args[0]
			ledger, err := rt.history.LedgerEntries(cmd.Context(), caseID)
			if err != nil {
				return fmt.Errorf("read ledger for %s: %w", caseID, err)
			}
			entries, err := rt.history.EscalationLog(cmd.Context(), caseID)
			if err != nil {
				return fmt.Errorf("read escalation log for %s: %w", caseID, err)
			}
			writeHistory(cmd.OutOrStdout(), caseID, ledger, entries, cfg.Location)
			return nil
		},
	}
}

func writeHistory(w io.Writer, caseID string, ledger []domain.LedgerEntry, entries []domain.EscalationLogEntry, loc *time.Location) {
	const layout = "2006-01-02 15:04 MST"
	fmt.Fprintf(w, "case %s\n", caseID)
	if len(ledger) == 0 {
		fmt.Fprintln(w, "  no SLA tiers notified")
	}
	for _, e := range ledger {
		fmt.Fprintf(w, "  tier %s notified %s\n", e.Tier, e.SentAt.In(loc).Format(layout))
	}
	for _, e := range entries {
		fmt.Fprintf(w, "  %s %s -> %s: %s\n", e.At.In(loc).Format(layout), e.From, e.To, e.Reason)
	}
}

func writeResult(w io.Writer, res domain.Result) {
	sent, skipped, failed := res.Counts()
	fmt.Fprintf(w, "run %s: processed=%d sent=%d skipped=%d failed=%d\n", res.RunID, res.Processed, sent, skipped, failed)
	lists := []struct {
		label string
		ids   []string
	}{
		{"notified", res.Notified},
		{"already notified", res.AlreadyNotified},
		{"no recipients", res.SkippedNoRecipients},
		{"resolution failed", res.ResolutionFailures},
	}
	for _, l := range lists {
		if len(l.ids) > 0 {
			fmt.Fprintf(w, "  %s: %s\n", l.label, strings.Join(l.ids, ", "))
		}
	}
	for _, o := range res.Outcomes {
		if o.Status == domain.DeliveryFailed {
			fmt.Fprintf(w, "  failed %s via %s: %s\n", o.Recipient.Email, o.Channel, o.Reason)
		}
	}
}
