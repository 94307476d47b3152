package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_SENDER_ADDRESS", "alerts@example.com")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadFromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)
	t.Setenv("MANAGER_SLACK_IDS", "U12345, U67890")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SMTPHost != "smtp.example.com" {
		t.Fatalf("unexpected smtp host: %q", cfg.SMTPHost)
	}
	if cfg.SMTPPort != 587 {
		t.Fatalf("unexpected smtp port default: %d", cfg.SMTPPort)
	}
	if cfg.DBPath != "./escalator.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.SweepSchedule != defaultSweepSchedule {
		t.Fatalf("unexpected sweep schedule default: %q", cfg.SweepSchedule)
	}
	if cfg.MaxHierarchyDepth != 50 {
		t.Fatalf("unexpected max hierarchy depth default: %d", cfg.MaxHierarchyDepth)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.SendTimeout() != 20*time.Second || cfg.LookupTimeout() != 10*time.Second {
		t.Fatalf("unexpected timeouts: send=%s lookup=%s", cfg.SendTimeout(), cfg.LookupTimeout())
	}
	if cfg.BindingTTL() != 7*24*time.Hour {
		t.Fatalf("unexpected binding ttl: %s", cfg.BindingTTL())
	}
	if cfg.SMTPSenderName != cfg.BrandingName || cfg.BrandingName == "" {
		t.Fatalf("expected sender name to default to branding, got %q / %q", cfg.SMTPSenderName, cfg.BrandingName)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if len(cfg.ManagerSlackIDs) != 2 || !cfg.IsManagerID("U67890") {
		t.Fatalf("expected 2 manager IDs, got %v", cfg.ManagerSlackIDs)
	}
	if cfg.ChatConfigured() || cfg.SocketModeConfigured() {
		t.Fatal("chat should be disabled without slack tokens")
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
smtp_host: "yaml-smtp"
smtp_port: 2525
smtp_sender_address: "yaml@example.com"
slack_bot_token: "xoxb-yaml"
timezone: "America/Los_Angeles"
db_path: "/tmp/yaml.db"
sweep_schedule: "0 * * * *"
binding_ttl_hours: 12
external_http_timeout_seconds: 75
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("SMTP_HOST", "env-smtp")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("EXTERNAL_HTTP_TIMEOUT_SECONDS", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SMTPHost != "env-smtp" {
		t.Fatalf("expected smtp host from env override, got %q", cfg.SMTPHost)
	}
	if cfg.SMTPPort != 2525 {
		t.Fatalf("expected smtp port from yaml, got %d", cfg.SMTPPort)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected db path from env override, got %q", cfg.DBPath)
	}
	if cfg.SweepSchedule != "0 * * * *" {
		t.Fatalf("expected sweep schedule from yaml, got %q", cfg.SweepSchedule)
	}
	if cfg.BindingTTL() != 12*time.Hour {
		t.Fatalf("expected binding ttl from yaml, got %s", cfg.BindingTTL())
	}
	if cfg.ExternalHTTPTimeoutSeconds != 120 {
		t.Fatalf("expected external HTTP timeout from env override, got %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if !cfg.ChatConfigured() || cfg.SocketModeConfigured() {
		t.Fatal("expected chat configured without socket mode")
	}
	if cfg.Location.String() != "America/Los_Angeles" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing smtp host", env: map[string]string{"SMTP_HOST": ""}, wantErr: "smtp_host"},
		{name: "missing sender", env: map[string]string{"SMTP_SENDER_ADDRESS": ""}, wantErr: "smtp_sender_address"},
		{name: "bad schedule", env: map[string]string{"SWEEP_SCHEDULE": "every minute"}, wantErr: "sweep_schedule"},
		{name: "bad timezone", env: map[string]string{"TIMEZONE": "Mars/Colony"}, wantErr: "timezone"},
		{name: "non-numeric depth", env: map[string]string{"MAX_HIERARCHY_DEPTH": "deep"}, wantErr: "MAX_HIERARCHY_DEPTH"},
		{name: "negative depth", env: map[string]string{"MAX_HIERARCHY_DEPTH": "-1"}, wantErr: "max_hierarchy_depth"},
		{name: "tiny http timeout", env: map[string]string{"EXTERNAL_HTTP_TIMEOUT_SECONDS": "2"}, wantErr: "external_http_timeout_seconds"},
		{name: "app token without bot token", env: map[string]string{"SLACK_APP_TOKEN": "xapp-1"}, wantErr: "slack_bot_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
			setMinimalValidConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected Load to fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNegativeBindingTTLNeverExpires(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	setMinimalValidConfigEnv(t)
	t.Setenv("BINDING_TTL_HOURS", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BindingTTL() != 0 {
		t.Fatalf("expected no expiry, got %s", cfg.BindingTTL())
	}
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("*/15 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule returned error: %v", err)
	}
	from := time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)
	if next := sched.Next(from); !next.Equal(time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next run: %s", next)
	}
	if _, err := ParseSchedule("* * * *"); err == nil {
		t.Fatal("expected 4-field expression to be rejected")
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("ESC_TEST_STR", "value")
	envOverride(&s, "ESC_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("ESC_TEST_INT", "42")
	if err := envOverrideInt(&i, "ESC_TEST_INT"); err != nil || i != 42 {
		t.Fatalf("envOverrideInt failed, got %d err=%v", i, err)
	}
	t.Setenv("ESC_TEST_INT", "x")
	if err := envOverrideInt(&i, "ESC_TEST_INT"); err == nil {
		t.Fatal("expected envOverrideInt to reject non-numeric input")
	}

	b := false
	t.Setenv("ESC_TEST_BOOL", "1")
	envOverrideBool(&b, "ESC_TEST_BOOL")
	if !b {
		t.Fatalf("envOverrideBool failed, got %v", b)
	}
}

func TestLoadConfigMissingCredentialsFatal(t *testing.T) {
	if os.Getenv("TEST_MISSING_SMTP_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Unsetenv("SMTP_HOST")
		_ = os.Setenv("SMTP_SENDER_ADDRESS", "alerts@example.com")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigMissingCredentialsFatal")
	cmd.Env = append(os.Environ(), "TEST_MISSING_SMTP_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
