package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"escalator/internal/channel"
	"escalator/internal/config"
	"escalator/internal/dispatch"
	"escalator/internal/domain"
	"escalator/internal/escalation"
	"escalator/internal/hierarchy"
	"escalator/internal/httpx"
	"escalator/internal/integrations/mail"
	slackbot "escalator/internal/integrations/slack"
	"escalator/internal/render"
	"escalator/internal/storage/postgres"
	"escalator/internal/storage/sqlite"
)

// historyStore is the read side of the ledger and audit log.
type historyStore interface {
	LedgerEntries(ctx context.Context, caseID string) ([]domain.LedgerEntry, error)
	EscalationLog(ctx context.Context, caseID string) ([]domain.EscalationLogEntry, error)
}

// runtime is everything one process needs, wired from config.
type runtime struct {
	cfg     config.Config
	db      *sql.DB
	pg      *postgres.Store
	slack   *slack.Client
	mailer  *mail.Sender
	history historyStore
	engine  *escalation.Engine
}

func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Managers=%d Timezone=%s Schedule=%s Chat=%t SocketMode=%t Postgres=%t MaxDepth=%d BindingTTL=%s ExternalHTTPTimeout=%s",
		len(cfg.ManagerSlackIDs),
		cfg.Timezone,
		cfg.SweepSchedule,
		cfg.ChatConfigured(),
		cfg.SocketModeConfigured(),
		cfg.DatabaseURL != "",
		cfg.MaxHierarchyDepth,
		cfg.BindingTTL(),
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	store := sqlite.New(db)
	rt := &runtime{cfg: cfg, db: db, history: store}

	var ledger escalation.Ledger = store
	var audit escalation.AuditLog = store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect postgres ledger: %w", err)
		}
		log.Printf("Using PostgreSQL notification ledger")
		rt.pg = pg
		rt.history = pg
		ledger, audit = pg, pg
	}

	mailer := mail.NewSender(mail.Config{
		Host:               cfg.SMTPHost,
		Port:               cfg.SMTPPort,
		User:               cfg.SMTPUser,
		Password:           cfg.SMTPPassword,
		SenderAddress:      cfg.SMTPSenderAddress,
		SenderName:         cfg.SMTPSenderName,
		InsecureSkipVerify: cfg.SMTPInsecureSkipVerify,
	})
	rt.mailer = mailer
	log.Printf("Email channel via SMTP %s:%d", mailer.GetHost(), mailer.GetPort())

	var chat dispatch.ChatSender
	var handles dispatch.HandleResolver
	if cfg.ChatConfigured() {
		opts := []slack.Option{slack.OptionHTTPClient(httpx.Client())}
		if cfg.SlackAppToken != "" {
			opts = append(opts, slack.OptionAppLevelToken(cfg.SlackAppToken))
		}
		rt.slack = slack.New(cfg.SlackBotToken, opts...)

		client := slackbot.NewClient(rt.slack)
		binder := channel.NewBinder(store, cfg.BindingTTL(), cfg.LookupTimeout())
		binder.Register(domain.ChannelChat, client)
		chat, handles = client, binder
	}

	rt.engine = escalation.New(escalation.Deps{
		Cases:      store,
		Ledger:     ledger,
		Audit:      audit,
		Executives: hierarchy.NewScopedExecutiveResolver(store, cfg.LookupTimeout()),
		Chain:      hierarchy.NewManagerChainWalker(store, cfg.MaxHierarchyDepth, cfg.LookupTimeout()),
		Renderer:   render.New(cfg.BrandingName, cfg.AppBaseURL, cfg.Location),
		Sender:     dispatch.New(mailer, chat, handles, cfg.DispatchConcurrency, cfg.SendTimeout()),
	})
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.pg != nil {
		rt.pg.Close()
	}
	if err := rt.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
