// Package notify tells agents about callers who could not be connected and
// are waiting for a callback.
package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/soyeahso/sharkchat/internal/hooks"
	"github.com/soyeahso/sharkchat/internal/logging"
)

// maxRetries bounds retries of rate-limited API calls.
const maxRetries = 3

// Callback is a request for an agent to call a customer back.
type Callback struct {
	SessionID string
	Phone     string
	Name      string
	Reason    string
	At        time.Time
}

// Title is the one-line summary used by every notifier.
func (c Callback) Title() string {
	who := c.Name
	if who == "" {
		who = "Customer"
	}
	return fmt.Sprintf("Callback requested: %s", who)
}

// Field is a labelled detail of a callback.
type Field struct {
	Name  string
	Value string
}

// Fields returns the non-empty details of a callback in display order.
func (c Callback) Fields() []Field {
	var out []Field
	add := func(name, value string) {
		if value != "" {
			out = append(out, Field{Name: name, Value: value})
		}
	}
	add("Phone", c.Phone)
	add("Name", c.Name)
	add("Reason", c.Reason)
	add("Session", c.SessionID)
	return out
}

// Notifier delivers callback requests.
type Notifier interface {
	Notify(ctx context.Context, cb Callback) error
}

// Multi fans a callback out to several notifiers.
type Multi []Notifier

// Notify delivers to every notifier and joins their errors.
func (m Multi) Notify(ctx context.Context, cb Callback) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, cb); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the configured notifiers. It returns nil when none are
// configured.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var m Multi
	if cfg.Slack != nil {
		s, err := NewSlack(cfg.Slack.Token, cfg.Slack.Channel)
		if err != nil {
			return nil, err
		}
		m = append(m, s)
	}
	if cfg.Discord != nil {
		d, err := NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		m = append(m, d)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

// Register sends a callback request whenever a call times out or fails.
func Register(m *hooks.Manager, n Notifier, log *logging.Logger) {
	log = log.Sub("notify")
	handler := func(ctx context.Context, p hooks.Payload) error {
		cb := callbackFrom(p)
		if err := n.Notify(ctx, cb); err != nil {
			return fmt.Errorf("callback for %s: %w", cb.SessionID, err)
		}
		log.Info().Str("sessionId", cb.SessionID).Str("reason", cb.Reason).Msg("callback requested")
		return nil
	}
	m.On(hooks.EventCallTimeout, "notify", handler)
	m.On(hooks.EventCallFailed, "notify", handler)
}

func callbackFrom(p hooks.Payload) Callback {
	str := func(key string) string {
		s, _ := p.Data[key].(string)
		return s
	}
	return Callback{
		SessionID: str("sessionId"),
		Phone:     str("phone"),
		Name:      str("name"),
		Reason:    str("reason"),
		At:        time.Now(),
	}
}

// retryRateLimited calls fn, retrying while rateLimited reports a
// rate-limit error. A zero wait from rateLimited means exponential backoff.
func retryRateLimited(ctx context.Context, fn func() error, rateLimited func(error) (time.Duration, bool)) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		wait, ok := rateLimited(err)
		if !ok || attempt == maxRetries {
			return err
		}
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
