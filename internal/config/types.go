package config

// Config is the root configuration for sharkchat.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty"`
	AWS      AWSConfig      `yaml:"aws,omitempty"`
	Identity IdentityConfig `yaml:"identity,omitempty"`
	Lex      LexConfig      `yaml:"lex,omitempty"`
	Call     CallConfig     `yaml:"call,omitempty"`
	Meeting  MeetingConfig  `yaml:"meeting,omitempty"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
}

// GatewayConfig controls the widget HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int          `yaml:"port,omitempty"`
	Bind           string       `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string       `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth  `yaml:"auth,omitempty"`
	TLS            GatewayTLS   `yaml:"tls,omitempty"`
	Widget         WidgetConfig `yaml:"widget,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode      string `yaml:"mode,omitempty"` // "token" | "password" | "jwt" | "none"
	Token     string `yaml:"token,omitempty"`
	Password  string `yaml:"password,omitempty"`
	JWTSecret string `yaml:"jwtSecret,omitempty"` // HS256 key shared with the host application
	JWTIssuer string `yaml:"jwtIssuer,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// WidgetConfig configures the browser widget surface.
type WidgetConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	// Provision serves /api/start-webrtc from this process. When false the
	// call manager posts to meeting.setupURL instead.
	Provision bool `yaml:"provision,omitempty"`
}

// ChannelsConfig defines channel-specific configurations.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines the IRC support desk settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels,omitempty"` // joined for presence; conversations happen in DMs
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// SessionConfig defines conversation lifetime and storage.
type SessionConfig struct {
	Scope          string `yaml:"scope,omitempty"` // "per-sender" | "global"
	IdleMinutes    int    `yaml:"idleMinutes,omitempty"`
	Store          string `yaml:"store,omitempty"` // "sqlite" | "memory"
	PruneSchedule  string `yaml:"pruneSchedule,omitempty"`
	RetentionHours int    `yaml:"retentionHours,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig defines shell command hooks per event.
type HooksConfig struct {
	MessageReceived []HookEntry `yaml:"messageReceived,omitempty"`
	MessageSending  []HookEntry `yaml:"messageSending,omitempty"`
	SessionStart    []HookEntry `yaml:"sessionStart,omitempty"`
	SessionEnd      []HookEntry `yaml:"sessionEnd,omitempty"`
	CallStarted     []HookEntry `yaml:"callStarted,omitempty"`
	CallConnected   []HookEntry `yaml:"callConnected,omitempty"`
	CallFailed      []HookEntry `yaml:"callFailed,omitempty"`
	CallTimeout     []HookEntry `yaml:"callTimeout,omitempty"`
	CallEnded       []HookEntry `yaml:"callEnded,omitempty"`
	GatewayStart    []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop     []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// AWSConfig selects the region and credentials shared by every AWS client.
// Empty keys fall back to the SDK default credential chain.
type AWSConfig struct {
	Region          string `yaml:"region,omitempty"`
	AccessKeyID     string `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `yaml:"secretAccessKey,omitempty"`
	SessionToken    string `yaml:"sessionToken,omitempty"`
	Profile         string `yaml:"profile,omitempty"`
}

// IdentityConfig points at the customer lookup API.
type IdentityConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Language string `yaml:"language,omitempty"`
	Timeout  int    `yaml:"timeout,omitempty"` // milliseconds
}

// LexConfig identifies the Lex V2 bot that answers connected conversations.
type LexConfig struct {
	BotID         string `yaml:"botId,omitempty"`
	BotAliasID    string `yaml:"botAliasId,omitempty"`
	LocaleID      string `yaml:"localeId,omitempty"`
	HandoffPrefix string `yaml:"handoffPrefix,omitempty"`
}

// CallConfig tunes call escalation timing, in milliseconds.
type CallConfig struct {
	ConnectTimeout int `yaml:"connectTimeout,omitempty"`
	GraceDelay     int `yaml:"graceDelay,omitempty"`
	CloseDelay     int `yaml:"closeDelay,omitempty"`
}

// MeetingConfig configures call setup.
type MeetingConfig struct {
	SetupURL    string `yaml:"setupUrl,omitempty"`
	MediaRegion string `yaml:"mediaRegion,omitempty"`
}

// NotifyConfig configures agent callback notifications.
type NotifyConfig struct {
	Slack   *SlackConfig   `yaml:"slack,omitempty"`
	Discord *DiscordConfig `yaml:"discord,omitempty"`
}

// SlackConfig posts callback requests to a Slack channel.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig posts callback requests to a Discord channel.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channelId"`
}

// ByEvent returns the configured hook entries keyed by their YAML name.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"messageReceived": h.MessageReceived,
		"messageSending":  h.MessageSending,
		"sessionStart":    h.SessionStart,
		"sessionEnd":      h.SessionEnd,
		"callStarted":     h.CallStarted,
		"callConnected":   h.CallConnected,
		"callFailed":      h.CallFailed,
		"callTimeout":     h.CallTimeout,
		"callEnded":       h.CallEnded,
		"gatewayStart":    h.GatewayStart,
		"gatewayStop":     h.GatewayStop,
	}
}
