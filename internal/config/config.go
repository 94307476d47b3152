package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 30 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	defaultSweepSchedule       = "*/15 * * * *"
	defaultMaxHierarchyDepth   = 50
	defaultBindingTTLHours     = 24 * 7
	defaultDispatchConcurrency = 8
	defaultSendTimeoutSeconds  = 20
	defaultLookupTimeout       = 10
)

type Config struct {
	DBPath      string `yaml:"db_path"`
	DatabaseURL string `yaml:"database_url"`

	SlackBotToken   string   `yaml:"slack_bot_token"`
	SlackAppToken   string   `yaml:"slack_app_token"`
	ManagerSlackIDs []string `yaml:"manager_slack_ids"`

	SMTPHost               string `yaml:"smtp_host"`
	SMTPPort               int    `yaml:"smtp_port"`
	SMTPUser               string `yaml:"smtp_user"`
	SMTPPassword           string `yaml:"smtp_password"`
	SMTPSenderAddress      string `yaml:"smtp_sender_address"`
	SMTPSenderName         string `yaml:"smtp_sender_name"`
	SMTPInsecureSkipVerify bool   `yaml:"smtp_insecure_skip_verify"`

	SweepSchedule string `yaml:"sweep_schedule"`
	Timezone      string `yaml:"timezone"`
	ListenAddr    string `yaml:"listen_addr"`
	APIToken      string `yaml:"api_token"`
	AppBaseURL    string `yaml:"app_base_url"`
	BrandingName  string `yaml:"branding_name"`

	MaxHierarchyDepth          int `yaml:"max_hierarchy_depth"`
	BindingTTLHours            int `yaml:"binding_ttl_hours"`
	DispatchConcurrency        int `yaml:"dispatch_concurrency"`
	SendTimeoutSeconds         int `yaml:"send_timeout_seconds"`
	LookupTimeoutSeconds       int `yaml:"lookup_timeout_seconds"`
	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig reads config.yaml (or CONFIG_PATH), applies env overrides and
// defaults, and exits the process on any invalid or missing setting.
func LoadConfig() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

func Load() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("error parsing %s: %w", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	var errs []error
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.DatabaseURL, "DATABASE_URL")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.SMTPHost, "SMTP_HOST")
	errs = append(errs, envOverrideInt(&cfg.SMTPPort, "SMTP_PORT"))
	envOverride(&cfg.SMTPUser, "SMTP_USER")
	envOverride(&cfg.SMTPPassword, "SMTP_PASSWORD")
	envOverride(&cfg.SMTPSenderAddress, "SMTP_SENDER_ADDRESS")
	envOverride(&cfg.SMTPSenderName, "SMTP_SENDER_NAME")
	envOverrideBool(&cfg.SMTPInsecureSkipVerify, "SMTP_INSECURE_SKIP_VERIFY")
	envOverride(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.APIToken, "API_TOKEN")
	envOverride(&cfg.AppBaseURL, "APP_BASE_URL")
	envOverride(&cfg.BrandingName, "BRANDING_NAME")
	errs = append(errs,
		envOverrideInt(&cfg.MaxHierarchyDepth, "MAX_HIERARCHY_DEPTH"),
		envOverrideInt(&cfg.BindingTTLHours, "BINDING_TTL_HOURS"),
		envOverrideInt(&cfg.DispatchConcurrency, "DISPATCH_CONCURRENCY"),
		envOverrideInt(&cfg.SendTimeoutSeconds, "SEND_TIMEOUT_SECONDS"),
		envOverrideInt(&cfg.LookupTimeoutSeconds, "LOOKUP_TIMEOUT_SECONDS"),
		envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"),
	)
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}

	if ids := os.Getenv("MANAGER_SLACK_IDS"); ids != "" {
		cfg.ManagerSlackIDs = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.ManagerSlackIDs = append(cfg.ManagerSlackIDs, id)
			}
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "./escalator.db"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.BrandingName == "" {
		cfg.BrandingName = "Case Escalations"
	}
	if cfg.SMTPSenderName == "" {
		cfg.SMTPSenderName = cfg.BrandingName
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = defaultSweepSchedule
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MaxHierarchyDepth == 0 {
		cfg.MaxHierarchyDepth = defaultMaxHierarchyDepth
	}
	if cfg.BindingTTLHours == 0 {
		cfg.BindingTTLHours = defaultBindingTTLHours
	}
	if cfg.DispatchConcurrency == 0 {
		cfg.DispatchConcurrency = defaultDispatchConcurrency
	}
	if cfg.SendTimeoutSeconds == 0 {
		cfg.SendTimeoutSeconds = defaultSendTimeoutSeconds
	}
	if cfg.LookupTimeoutSeconds == 0 {
		cfg.LookupTimeoutSeconds = defaultLookupTimeout
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Email is the channel every path dispatches on; without it nothing can be delivered.
	required := []struct{ name, val string }{
		{"smtp_host", cfg.SMTPHost},
		{"smtp_sender_address", cfg.SMTPSenderAddress},
	}
	for _, r := range required {
		if r.val == "" {
			return cfg, fmt.Errorf("required config '%s' is not set (via config.yaml or env var)", r.name)
		}
	}

	if cfg.SlackAppToken != "" && cfg.SlackBotToken == "" {
		return cfg, fmt.Errorf("slack_app_token is set but slack_bot_token is not")
	}
	if cfg.SlackBotToken == "" {
		log.Printf("WARNING: slack_bot_token not set, chat channel disabled")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if _, err := ParseSchedule(cfg.SweepSchedule); err != nil {
		return cfg, fmt.Errorf("invalid sweep_schedule '%s': %w", cfg.SweepSchedule, err)
	}
	if cfg.SMTPPort < 1 || cfg.SMTPPort > 65535 {
		return cfg, fmt.Errorf("invalid smtp_port '%d': must be between 1 and 65535", cfg.SMTPPort)
	}
	if cfg.MaxHierarchyDepth < 1 {
		return cfg, fmt.Errorf("invalid max_hierarchy_depth '%d': must be >= 1", cfg.MaxHierarchyDepth)
	}
	if cfg.DispatchConcurrency < 1 {
		return cfg, fmt.Errorf("invalid dispatch_concurrency '%d': must be >= 1", cfg.DispatchConcurrency)
	}
	if cfg.SendTimeoutSeconds < 1 {
		return cfg, fmt.Errorf("invalid send_timeout_seconds '%d': must be >= 1", cfg.SendTimeoutSeconds)
	}
	if cfg.LookupTimeoutSeconds < 1 {
		return cfg, fmt.Errorf("invalid lookup_timeout_seconds '%d': must be >= 1", cfg.LookupTimeoutSeconds)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		return cfg, fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}

	return cfg, nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(spec))
}

func (c Config) IsManagerID(userID string) bool {
	for _, id := range c.ManagerSlackIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}

func (c Config) ChatConfigured() bool {
	return c.SlackBotToken != ""
}

func (c Config) SocketModeConfigured() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

func (c Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

// BindingTTL is zero when cached chat handles never expire, which a
// negative binding_ttl_hours selects.
func (c Config) BindingTTL() time.Duration {
	if c.BindingTTLHours < 0 {
		return 0
	}
	return time.Duration(c.BindingTTLHours) * time.Hour
}
