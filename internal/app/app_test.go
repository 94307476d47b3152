package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"escalator/internal/config"
	"escalator/internal/domain"
	"escalator/internal/storage/sqlite"
)

func setTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "escalator.db")
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("SMTP_HOST", "127.0.0.1")
	t.Setenv("SMTP_PORT", "1")
	t.Setenv("SMTP_SENDER_ADDRESS", "alerts@example.com")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	return dbPath
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})
	for _, name := range []string{"serve", "sweep", "escalate", "history"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q, got %v (err=%v)", name, cmd, err)
		}
	}
}

func TestEscalateRejectsBadArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing case id", args: []string{"escalate"}, want: "accepts 1 arg"},
		{name: "bad type", args: []string{"escalate", "C-1", "--type", "loud"}, want: "invalid --type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCommand(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)
			err := root.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSweepCommandOnEmptyStore(t *testing.T) {
	setTestEnv(t)

	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs([]string{"sweep"})
	if err := root.Execute(); err != nil {
		t.Fatalf("sweep returned error: %v", err)
	}
	if !strings.Contains(out.String(), "processed=0 sent=0") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestEscalateCommandWithoutRecipients(t *testing.T) {
	dbPath := setTestEnv(t)

	db, err := sqlite.InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	deadline := time.Now().Add(time.Hour)
	err = sqlite.New(db).UpsertCase(context.Background(), domain.Case{
		ID: "C-1", Market: "nowhere", StoreNumber: "1", Status: domain.CaseStatusEscalated, SLADeadline: &deadline,
	})
	db.Close()
	if err != nil {
		t.Fatalf("UpsertCase: %v", err)
	}

	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs([]string{"escalate", "C-1", "--type", "sla"})
	if err := root.Execute(); err != nil {
		t.Fatalf("escalate returned error: %v", err)
	}
	if !strings.Contains(out.String(), "no recipients: C-1") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestBuildRuntimeWithoutChat(t *testing.T) {
	setTestEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rt, err := buildRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	defer rt.Close()

	if rt.slack != nil {
		t.Fatal("slack client must not be built without a bot token")
	}
	if rt.engine == nil || rt.pg != nil {
		t.Fatalf("unexpected runtime: %+v", rt)
	}
	if rt.mailer.GetHost() != cfg.SMTPHost || rt.mailer.GetPort() != cfg.SMTPPort {
		t.Fatalf("mailer not built from config: %s:%d", rt.mailer.GetHost(), rt.mailer.GetPort())
	}
}

func TestHistoryCommandShowsLedgerAndAudit(t *testing.T) {
	dbPath := setTestEnv(t)

	db, err := sqlite.InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	store := sqlite.New(db)
	ctx := context.Background()
	if _, err := store.TryRecord(ctx, "C-9", domain.TierUrgent); err != nil {
		t.Fatalf("TryRecord: %v", err)
	}
	err = store.Append(ctx, domain.EscalationLogEntry{
		ID: "01J0000000000000000000000", CaseID: "C-9", From: "sla_sweep", To: "URGENT", Reason: "notified vp1", At: time.Now().UTC(),
	})
	db.Close()
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs([]string{"history", "C-9"})
	if err := root.Execute(); err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	for _, want := range []string{"tier URGENT notified", "sla_sweep -> URGENT: notified vp1"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output %q missing %q", out.String(), want)
		}
	}

	out.Reset()
	root = NewRootCommand(&out)
	root.SetArgs([]string{"history", "C-unknown"})
	if err := root.Execute(); err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	if !strings.Contains(out.String(), "no SLA tiers notified") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
