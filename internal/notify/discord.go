package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// discordSession is the part of the Discord API the notifier uses.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts callback requests to a Discord channel.
type Discord struct {
	sess      discordSession
	channelID string
}

// NewDiscord creates a Discord notifier from a bot token. Messages go over
// the REST API; no gateway connection is opened.
func NewDiscord(token, channelID string) (*Discord, error) {
	if token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord: channel ID is required")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Discord{sess: dg, channelID: channelID}, nil
}

func (d *Discord) Notify(ctx context.Context, cb Callback) error {
	embed := &discordgo.MessageEmbed{
		Title: cb.Title(),
		Color: 0xe01e5a,
	}
	if !cb.At.IsZero() {
		embed.Timestamp = cb.At.UTC().Format(time.RFC3339)
	}
	for _, f := range cb.Fields() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}

	err := retryRateLimited(ctx, func() error {
		_, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx))
		return err
	}, discordRateLimited)
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

func discordRateLimited(err error) (time.Duration, bool) {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return 0, false
	}
	return 0, restErr.Response.StatusCode == http.StatusTooManyRequests
}
