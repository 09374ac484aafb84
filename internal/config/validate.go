package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}

	validAuthModes := []string{"token", "password", "jwt", "none"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}
	if cfg.Gateway.Auth.Mode == "jwt" && cfg.Gateway.Auth.JWTSecret == "" {
		add("gateway.auth.jwtSecret", "required when auth mode is jwt")
	}

	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Session validation
	validScopes := []string{"per-sender", "global"}
	if cfg.Session.Scope != "" && !slices.Contains(validScopes, cfg.Session.Scope) {
		add("session.scope", "must be one of %v, got %q", validScopes, cfg.Session.Scope)
	}
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		add("session.store", "must be one of %v, got %q", validStores, cfg.Session.Store)
	}
	if cfg.Session.IdleMinutes < 0 {
		add("session.idleMinutes", "must not be negative, got %d", cfg.Session.IdleMinutes)
	}
	if cfg.Session.RetentionHours < 0 {
		add("session.retentionHours", "must not be negative, got %d", cfg.Session.RetentionHours)
	}
	if cfg.Session.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Session.PruneSchedule); err != nil {
			add("session.pruneSchedule", "invalid cron expression %q: %v", cfg.Session.PruneSchedule, err)
		}
	}

	// Conversation backends
	if cfg.Identity.Path != "" && !strings.HasPrefix(cfg.Identity.Path, "/") {
		add("identity.path", "must start with /, got %q", cfg.Identity.Path)
	}
	if cfg.Identity.Timeout < 0 {
		add("identity.timeout", "must not be negative, got %d", cfg.Identity.Timeout)
	}
	if cfg.Lex.BotID != "" && cfg.Lex.BotAliasID == "" {
		add("lex.botAliasId", "required when botId is set")
	}
	if strings.ContainsAny(cfg.Lex.HandoffPrefix, " \t\n") {
		add("lex.handoffPrefix", "must be a single word, got %q", cfg.Lex.HandoffPrefix)
	}

	// Call timing
	if cfg.Call.ConnectTimeout < 0 {
		add("call.connectTimeout", "must not be negative, got %d", cfg.Call.ConnectTimeout)
	}
	if cfg.Call.GraceDelay < 0 {
		add("call.graceDelay", "must not be negative, got %d", cfg.Call.GraceDelay)
	}
	if cfg.Call.CloseDelay < 0 {
		add("call.closeDelay", "must not be negative, got %d", cfg.Call.CloseDelay)
	}
	if !cfg.Gateway.Widget.Provision && cfg.Meeting.SetupURL == "" {
		add("meeting.setupUrl", "required when gateway.widget.provision is false")
	}

	// IRC validation (only if configured)
	if cfg.Channels.IRC != nil {
		irc := cfg.Channels.IRC
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	// Notifiers
	if s := cfg.Notify.Slack; s != nil {
		if s.Token == "" {
			add("notify.slack.token", "token is required")
		}
		if s.Channel == "" {
			add("notify.slack.channel", "channel is required")
		}
	}
	if d := cfg.Notify.Discord; d != nil {
		if d.Token == "" {
			add("notify.discord.token", "token is required")
		}
		if d.ChannelID == "" {
			add("notify.discord.channelId", "channelId is required")
		}
	}

	for event, entries := range cfg.Hooks.ByEvent() {
		for i, h := range entries {
			if strings.TrimSpace(h.Command) == "" {
				add(fmt.Sprintf("hooks.%s[%d].command", event, i), "command is required")
			}
			if h.Timeout < 0 {
				add(fmt.Sprintf("hooks.%s[%d].timeout", event, i), "must not be negative, got %d", h.Timeout)
			}
		}
	}

	return issues
}
