// Package irc runs the support desk on IRC using the girc library. Direct
// messages to the bot are support conversations; channels are joined only
// so customers can find the bot.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/sharkchat/internal/config"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/version"
)

// ChannelID is the session-key channel of IRC conversations.
const ChannelID = "irc"

// maxLineLen keeps PRIVMSG lines under the 512-byte protocol limit once the
// prefix and target are added.
const maxLineLen = 400

// pointerText answers a mention in a joined channel.
const pointerText = "%s: message me directly to chat with support."

// sender is the subset of girc used to reply; tests substitute it.
type sender interface {
	Message(target, message string)
}

// Channel implements domain.Channel for IRC.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	out    sender
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (c *Channel) ID() string { return ChannelID }

// Capabilities: text only. Quick replies are rendered inline and there is
// no audio, so call escalation reports a missing device.
func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM},
	}
}

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: ChannelID,
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) gircConfig() (girc.Config, int) {
	port := c.cfg.Port
	if port == 0 {
		if c.cfg.UseTLS {
			port = 6697
		} else {
			port = 6667
		}
	}

	gircCfg := girc.Config{
		Server:  c.cfg.Server,
		Port:    port,
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "sharkchat support desk",
		SSL:     c.cfg.UseTLS,
		Version: "sharkchat/" + version.Version,
	}
	if c.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{
			ServerName: c.cfg.Server,
		}
	}
	if c.cfg.SASL && c.cfg.Password != "" {
		gircCfg.SASL = &girc.SASLPlain{
			User: c.cfg.Nick,
			Pass: c.cfg.Password,
		}
	} else if c.cfg.Password != "" {
		gircCfg.ServerPass = c.cfg.Password
	}
	return gircCfg, port
}

// Start connects to the IRC server and blocks until the connection ends or
// ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	gircCfg, port := c.gircConfig()

	client := girc.New(gircCfg)
	c.mu.Lock()
	c.client = client
	c.out = client.Cmd
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()
	c.registerHandlers()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", port).
		Str("nick", c.cfg.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop gracefully disconnects from the IRC server.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("support desk closing")
	}
	c.running = false
	return nil
}

// Send delivers a message to an IRC user, one PRIVMSG per line.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	out := c.out
	connected := c.client == nil || c.client.IsConnected()
	c.mu.RUnlock()
	if out == nil || !connected {
		return fmt.Errorf("irc: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("irc: no target specified")
	}

	lines := splitMessage(msg.Body, maxLineLen)
	for _, line := range lines {
		out.Message(msg.To, line)
	}

	c.log.Debug().
		Str("to", msg.To).
		Int("lines", len(lines)).
		Msg("sent IRC message")
	return nil
}

func (c *Channel) registerHandlers() {
	c.client.Handlers.Add(girc.CONNECTED, c.onConnected)
	c.client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	c.client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)
}

func (c *Channel) onConnected(_ *girc.Client, e girc.Event) {
	c.log.Info().Str("nick", c.client.GetNick()).Msg("connected to IRC")

	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		c.client.Cmd.Join(ch)
	}
}

func (c *Channel) onPrivmsg(_ *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}
	c.handlePrivmsg(c.client.GetNick(), e.Source.Name, e.Params[0], body)
}

// handlePrivmsg turns a direct message into an inbound support message. A
// mention in a joined channel gets a pointer to direct messages.
func (c *Channel) handlePrivmsg(self, from, target, body string) {
	if strings.EqualFold(from, self) {
		return
	}

	if girc.IsValidChannel(target) {
		if strings.Contains(strings.ToLower(body), strings.ToLower(self)) {
			c.mu.RLock()
			out := c.out
			c.mu.RUnlock()
			if out != nil {
				out.Message(target, fmt.Sprintf(pointerText, from))
			}
		}
		return
	}

	msg := domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: ChannelID,
		From:      from,
		FromName:  from,
		ChatID:    from,
		ChatType:  domain.ChatTypeDM,
		Body:      body,
		Timestamp: time.Now(),
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

func (c *Channel) onDisconnected(_ *girc.Client, e girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// splitMessage breaks text into IRC lines: one per input line, with long
// lines cut at maxLen bytes. Blank lines are dropped.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		for len(line) > maxLen {
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
