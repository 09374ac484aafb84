package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so passwords and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	cfg.Gateway.Auth.JWTSecret = expandEnvVars(cfg.Gateway.Auth.JWTSecret)
	cfg.AWS.AccessKeyID = expandEnvVars(cfg.AWS.AccessKeyID)
	cfg.AWS.SecretAccessKey = expandEnvVars(cfg.AWS.SecretAccessKey)
	cfg.AWS.SessionToken = expandEnvVars(cfg.AWS.SessionToken)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
	if cfg.Notify.Slack != nil {
		cfg.Notify.Slack.Token = expandEnvVars(cfg.Notify.Slack.Token)
	}
	if cfg.Notify.Discord != nil {
		cfg.Notify.Discord.Token = expandEnvVars(cfg.Notify.Discord.Token)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DecodeRaw decodes a raw config tree over the defaults. Keys the schema
// does not know and values of the wrong type are errors.
func DecodeRaw(raw map[string]any) (Config, error) {
	cfg := Defaults()
	data, err := yaml.Marshal(raw)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, &ConfigError{Message: "invalid config: " + err.Error()}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// DefaultsRaw returns the defaults as a generic map for path-based access.
func DefaultsRaw() (map[string]any, error) {
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Session.Scope == "" {
		cfg.Session.Scope = "per-sender"
	}
	if cfg.Session.IdleMinutes == 0 {
		cfg.Session.IdleMinutes = 30
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
	if cfg.Session.PruneSchedule == "" {
		cfg.Session.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.Session.RetentionHours == 0 {
		cfg.Session.RetentionHours = DefaultRetentionHours
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.Identity.Path == "" {
		cfg.Identity.Path = DefaultIdentityPath
	}
	if cfg.Identity.Language == "" {
		cfg.Identity.Language = "en-US"
	}
	if cfg.Identity.Timeout == 0 {
		cfg.Identity.Timeout = 10000
	}
	if cfg.Lex.LocaleID == "" {
		cfg.Lex.LocaleID = "en_US"
	}
	if cfg.Lex.HandoffPrefix == "" {
		cfg.Lex.HandoffPrefix = DefaultHandoffPrefix
	}
	if cfg.Call.ConnectTimeout == 0 {
		cfg.Call.ConnectTimeout = 10000
	}
	if cfg.Call.GraceDelay == 0 {
		cfg.Call.GraceDelay = 5000
	}
	if cfg.Call.CloseDelay == 0 {
		cfg.Call.CloseDelay = 2000
	}
	if cfg.Meeting.MediaRegion == "" {
		cfg.Meeting.MediaRegion = cfg.AWS.Region
	}
}

// applyEnvOverrides reads SHARKCHAT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHARKCHAT_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("SHARKCHAT_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("SHARKCHAT_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("SHARKCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SHARKCHAT_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("SHARKCHAT_IDENTITY_ENDPOINT"); v != "" {
		cfg.Identity.Endpoint = v
	}
	if v := os.Getenv("SHARKCHAT_LEX_BOT_ID"); v != "" {
		cfg.Lex.BotID = v
	}
	if v := os.Getenv("SHARKCHAT_LEX_BOT_ALIAS_ID"); v != "" {
		cfg.Lex.BotAliasID = v
	}
}
