package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort           = 18790
	DefaultIdentityPath   = "/dev/MC_User_GET"
	DefaultHandoffPrefix  = "lrzmsinu"
	DefaultPruneSchedule  = "0 * * * *"
	DefaultRetentionHours = 720
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{
		Gateway: GatewayConfig{
			Auth:   GatewayAuth{Mode: "token"},
			Widget: WidgetConfig{Provision: true},
		},
	}
	applyDefaults(&cfg)
	return cfg
}

// ConnectTimeoutDuration returns call.connectTimeout as a duration.
func (c CallConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Millisecond
}

// GraceDelayDuration returns call.graceDelay as a duration.
func (c CallConfig) GraceDelayDuration() time.Duration {
	return time.Duration(c.GraceDelay) * time.Millisecond
}

// CloseDelayDuration returns call.closeDelay as a duration.
func (c CallConfig) CloseDelayDuration() time.Duration {
	return time.Duration(c.CloseDelay) * time.Millisecond
}

// IdleTimeout returns session.idleMinutes as a duration.
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleMinutes) * time.Minute
}

// Retention returns session.retentionHours as a duration.
func (s SessionConfig) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}
