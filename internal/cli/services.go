package cli

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/soyeahso/sharkchat/internal/awsx"
	"github.com/soyeahso/sharkchat/internal/call"
	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/soyeahso/sharkchat/internal/conversation"
	"github.com/soyeahso/sharkchat/internal/hooks"
	"github.com/soyeahso/sharkchat/internal/identity"
	"github.com/soyeahso/sharkchat/internal/lex"
	"github.com/soyeahso/sharkchat/internal/meeting"
	"github.com/soyeahso/sharkchat/internal/notify"
	"github.com/soyeahso/sharkchat/internal/store"
)

// services are the collaborators built from configuration and shared by
// every conversation of one process.
type services struct {
	deps  conversation.Deps
	setup meeting.Setup
	db    *store.DB
}

// loadConfig loads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// openStore opens the configured conversation store. db is nil for the
// in-memory store.
func openStore(cfg config.Config) (store.ConversationStore, *store.DB, error) {
	if cfg.Session.Store != "sqlite" {
		log.Info().Msg("using in-memory conversation store")
		return store.NewMemoryStore(), nil, nil
	}
	db, err := store.Open(paths.Database(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info().Str("path", paths.Database()).Msg("using SQLite conversation store")
	return store.NewSQLiteStore(db), db, nil
}

// buildServices wires storage, AWS clients, hooks and notifiers.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	st, db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s := &services{db: db}
	s.deps.Store = st

	var awsCfg aws.Config
	haveAWS := false
	if cfg.AWS.Region != "" {
		awsCfg, err = awsx.Load(ctx, cfg.AWS)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		haveAWS = true
	} else {
		log.Warn().Msg("aws.region not set; lex backend and meeting provisioning disabled")
	}

	s.deps.Lookup = identity.New(cfg.Identity, awsCfg, log)

	if haveAWS && cfg.Lex.BotID != "" {
		s.deps.Backend = lex.NewFromConfig(awsCfg, cfg.Lex, log)
	} else {
		log.Warn().Msg("no lex bot configured; connected conversations get a fallback reply")
	}

	switch {
	case cfg.Gateway.Widget.Provision && haveAWS:
		s.setup = meeting.NewProvisionerFromConfig(awsCfg, cfg.Meeting.MediaRegion, log)
	case cfg.Meeting.SetupURL != "":
		s.setup = meeting.NewClient(cfg.Meeting.SetupURL)
	default:
		log.Warn().Msg("no call setup configured; escalation is unavailable")
	}

	hookMgr := hooks.NewManager(log)
	if n := hookMgr.RegisterCommands(cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("command hooks registered")
	}
	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("configuring notifications: %w", err)
	}
	if notifier != nil {
		notify.Register(hookMgr, notifier, log)
	}
	s.deps.Hooks = hookMgr

	return s, nil
}

// registry creates the conversation registry over the services.
func (s *services) registry(cfg config.Config) *conversation.Registry {
	return conversation.NewRegistry(s.deps, conversation.RegistryOptions{
		Conversation: conversation.Options{
			Rules:      conversation.Rules{HandoffPrefix: cfg.Lex.HandoffPrefix},
			CloseDelay: cfg.Call.CloseDelayDuration(),
		},
		IdleTimeout: cfg.Session.IdleTimeout(),
		Retention:   cfg.Session.Retention(),
	}, log)
}

// Close releases the database, if one was opened.
func (s *services) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func callOptions(cfg config.Config) call.Options {
	return call.Options{
		ConnectTimeout: cfg.Call.ConnectTimeoutDuration(),
		GraceDelay:     cfg.Call.GraceDelayDuration(),
	}
}
