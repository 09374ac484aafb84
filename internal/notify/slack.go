package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"
)

// slackClient is the part of the Slack API the notifier uses.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts callback requests to a Slack channel.
type Slack struct {
	client  slackClient
	channel string
}

// NewSlack creates a Slack notifier from a bot token.
func NewSlack(token, channel string) (*Slack, error) {
	if token == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	return &Slack{client: slackapi.New(token), channel: channel}, nil
}

func (s *Slack) Notify(ctx context.Context, cb Callback) error {
	att := slackapi.Attachment{
		Title:    cb.Title(),
		Color:    "#e01e5a",
		Fallback: cb.Title(),
	}
	for _, f := range cb.Fields() {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: true})
	}

	err := retryRateLimited(ctx, func() error {
		_, _, err := s.client.PostMessageContext(ctx, s.channel,
			slackapi.MsgOptionText(cb.Title(), false),
			slackapi.MsgOptionAttachments(att),
		)
		return err
	}, slackRateLimited)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func slackRateLimited(err error) (time.Duration, bool) {
	var rle *slackapi.RateLimitedError
	if !errors.As(err, &rle) {
		return 0, false
	}
	return rle.RetryAfter, true
}
