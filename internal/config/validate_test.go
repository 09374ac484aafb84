package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_SingleField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"port too high", func(c *Config) { c.Gateway.Port = 70000 }, "gateway.port"},
		{"negative port", func(c *Config) { c.Gateway.Port = -1 }, "gateway.port"},
		{"unknown bind", func(c *Config) { c.Gateway.Bind = "tailnet" }, "gateway.bind"},
		{"custom bind without host", func(c *Config) { c.Gateway.Bind = "custom" }, "gateway.customBindHost"},
		{"unknown auth mode", func(c *Config) { c.Gateway.Auth.Mode = "oauth" }, "gateway.auth.mode"},
		{"jwt without secret", func(c *Config) { c.Gateway.Auth.Mode = "jwt" }, "gateway.auth.jwtSecret"},
		{"tls without cert", func(c *Config) { c.Gateway.TLS.Enabled = true }, "gateway.tls"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad console style", func(c *Config) { c.Logging.ConsoleStyle = "fancy" }, "logging.consoleStyle"},
		{"bad scope", func(c *Config) { c.Session.Scope = "per-channel" }, "session.scope"},
		{"bad store", func(c *Config) { c.Session.Store = "redis" }, "session.store"},
		{"negative idle", func(c *Config) { c.Session.IdleMinutes = -5 }, "session.idleMinutes"},
		{"bad cron", func(c *Config) { c.Session.PruneSchedule = "every hour" }, "session.pruneSchedule"},
		{"relative identity path", func(c *Config) { c.Identity.Path = "dev/MC_User_GET" }, "identity.path"},
		{"bot without alias", func(c *Config) { c.Lex.BotID = "BOT" }, "lex.botAliasId"},
		{"handoff prefix with space", func(c *Config) { c.Lex.HandoffPrefix = "hand off" }, "lex.handoffPrefix"},
		{"negative connect timeout", func(c *Config) { c.Call.ConnectTimeout = -1 }, "call.connectTimeout"},
		{"negative grace", func(c *Config) { c.Call.GraceDelay = -1 }, "call.graceDelay"},
		{"negative close", func(c *Config) { c.Call.CloseDelay = -1 }, "call.closeDelay"},
		{"remote setup without url", func(c *Config) { c.Gateway.Widget.Provision = false }, "meeting.setupUrl"},
		{"slack without channel", func(c *Config) { c.Notify.Slack = &SlackConfig{Token: "x"} }, "notify.slack.channel"},
		{"discord without token", func(c *Config) { c.Notify.Discord = &DiscordConfig{ChannelID: "1"} }, "notify.discord.token"},
		{"hook without command", func(c *Config) { c.Hooks.CallTimeout = []HookEntry{{Command: " "}} }, "hooks.callTimeout[0].command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.Len(t, issues, 1, "issues: %v", issues)
			assert.Equal(t, tt.path, issues[0].Path)
		})
	}
}

func TestValidate_AcceptedValues(t *testing.T) {
	for _, mode := range []string{"token", "password", "none"} {
		cfg := Defaults()
		cfg.Gateway.Auth.Mode = mode
		assert.Empty(t, Validate(&cfg), "auth mode %s", mode)
	}
	for _, bind := range []string{"auto", "lan", "loopback"} {
		cfg := Defaults()
		cfg.Gateway.Bind = bind
		assert.Empty(t, Validate(&cfg), "bind %s", bind)
	}
	for _, sched := range []string{"@every 1m", "@daily", "*/15 * * * *"} {
		cfg := Defaults()
		cfg.Session.PruneSchedule = sched
		assert.Empty(t, Validate(&cfg), "schedule %s", sched)
	}

	cfg := Defaults()
	cfg.Gateway.Auth = GatewayAuth{Mode: "jwt", JWTSecret: "k"}
	cfg.Gateway.Widget.Provision = false
	cfg.Meeting.SetupURL = "https://calls.example.com/api/start-webrtc"
	cfg.Lex = LexConfig{BotID: "B", BotAliasID: "A", LocaleID: "en_US", HandoffPrefix: "lrzmsinu"}
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_IRC(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.IRC = &IRCConfig{Port: 70000, SASL: true}
	paths := issuePaths(Validate(&cfg))
	assert.ElementsMatch(t, []string{
		"channels.irc.server",
		"channels.irc.nick",
		"channels.irc.port",
		"channels.irc.sasl",
	}, paths)

	cfg.Channels.IRC = &IRCConfig{Server: "irc.libera.chat", Nick: "sharkdesk", Port: 6697, SASL: true, Password: "pw"}
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = "loud"
	cfg.Session.Store = "postgres"
	assert.Len(t, Validate(&cfg), 3)
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "lex.botAliasId", Message: "required when botId is set"}
	assert.Equal(t, "lex.botAliasId: required when botId is set", issue.String())
}
