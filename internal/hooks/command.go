package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/sharkchat/internal/config"
)

// DefaultCommandTimeout bounds a command hook that sets no timeout.
const DefaultCommandTimeout = 10 * time.Second

// configEvents maps YAML hook keys to event names.
var configEvents = map[string]string{
	"messageReceived": EventMessageReceived,
	"messageSending":  EventMessageSending,
	"sessionStart":    EventSessionStart,
	"sessionEnd":      EventSessionEnd,
	"callStarted":     EventCallStarted,
	"callConnected":   EventCallConnected,
	"callFailed":      EventCallFailed,
	"callTimeout":     EventCallTimeout,
	"callEnded":       EventCallEnded,
	"gatewayStart":    EventGatewayStart,
	"gatewayStop":     EventGatewayStop,
}

// CommandHandler returns a Handler that runs entry.Command through sh -c with
// the JSON-encoded payload on stdin. A non-zero exit is reported as an error.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := DefaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}

	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(cmd.Environ(), "SHARKCHAT_EVENT="+p.Event)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook %q timed out after %s", entry.Command, timeout)
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("hook %q exited %d: %s", entry.Command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
			}
			return fmt.Errorf("hook %q: %w", entry.Command, err)
		}
		return nil
	}
}

// RegisterCommands wires every configured command hook into the manager.
// Returns the number of hooks registered.
func (m *Manager) RegisterCommands(cfg config.HooksConfig) int {
	n := 0
	for key, entries := range cfg.ByEvent() {
		event, ok := configEvents[key]
		if !ok {
			continue
		}
		for i, entry := range entries {
			if strings.TrimSpace(entry.Command) == "" {
				continue
			}
			m.On(event, fmt.Sprintf("command:%s[%d]", key, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
