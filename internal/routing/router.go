// Package routing connects messaging channels to support conversations.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/sharkchat/internal/call"
	"github.com/soyeahso/sharkchat/internal/channel"
	"github.com/soyeahso/sharkchat/internal/conversation"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
)

// Options tune how channel messages become conversations.
type Options struct {
	// Scope is "per-sender" (default) or "global".
	Scope string
	Call  call.Options
}

// Router routes inbound channel messages into conversations and renders
// their transcripts back onto the originating channel.
type Router struct {
	channels      *channel.Registry
	conversations *conversation.Registry
	opts          Options
	log           *logging.Logger
}

// NewRouter creates a message router.
func NewRouter(
	channels *channel.Registry,
	conversations *conversation.Registry,
	opts Options,
	log *logging.Logger,
) *Router {
	if opts.Scope == "" {
		opts.Scope = ScopePerSender
	}
	return &Router{
		channels:      channels,
		conversations: conversations,
		opts:          opts,
		log:           log.Sub("routing"),
	}
}

// HandleInbound processes an inbound message from any channel. The first
// message of a conversation only opens it; the welcome prompt is the reply.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	r.log.Info().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Str("chatId", msg.ChatID).
		Str("chatType", string(msg.ChatType)).
		Msg("routing inbound message")

	if r.conversations == nil {
		r.log.Warn().Msg("no conversation registry configured, dropping message")
		return
	}

	key := ResolveSessionKey(msg, r.opts.Scope)
	conv, created, err := r.conversations.Open(ctx, key, r.shell(msg))
	if err != nil {
		r.log.Error().Err(err).
			Str("channel", msg.ChannelID).
			Str("from", msg.From).
			Msg("opening conversation failed")
		return
	}
	if created {
		return
	}

	err = conv.Send(ctx, ResolveChoice(msg.Body, conv.Messages()))
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
	case errors.Is(err, conversation.ErrClosed):
		r.log.Debug().Str("sessionId", conv.ID()).Msg("message for closed conversation dropped")
	case err != nil:
		r.log.Error().Err(err).Str("sessionId", conv.ID()).Msg("turn failed")
	}
}

// shell attaches a conversation to the channel the message came from.
// Text channels carry no audio, so escalation ends in "no device".
func (r *Router) shell(msg domain.InboundMessage) conversation.Shell {
	sink := &channelSink{
		channels:  r.channels,
		channelID: msg.ChannelID,
		to:        replyTarget(msg),
		log:       r.log,
	}
	return conversation.Shell{
		Sink:      sink,
		NewCaller: TextCaller(r.opts.Call, r.log.With("to", sink.to)),
	}
}

// TextCaller builds call managers for shells without audio. Escalating
// reports that no microphone was found.
func TextCaller(opts call.Options, log *logging.Logger) func(call.Events) conversation.Caller {
	return func(ev call.Events) conversation.Caller {
		return call.NewManager(call.Deps{Devices: textOnly{}}, ev, opts, log)
	}
}

// Wire registers the router's HandleInbound as the message handler on all channels.
func (r *Router) Wire() {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			go r.HandleInbound(context.Background(), msg)
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// replyTarget determines where to send the response.
func replyTarget(msg domain.InboundMessage) string {
	switch msg.ChatType {
	case domain.ChatTypeDM:
		return msg.From
	default:
		return msg.ChatID
	}
}

// channelSink renders bot messages as channel text. Call status and close
// have no channel representation beyond the messages that accompany them.
type channelSink struct {
	channels  *channel.Registry
	channelID string
	to        string
	log       *logging.Logger
}

func (s *channelSink) Deliver(msg domain.Message) {
	if msg.Origin != domain.OriginBot {
		return
	}
	if err := s.channels.Send(context.Background(), s.channelID, s.to, RenderText(msg)); err != nil {
		s.log.Error().Err(err).
			Str("channel", s.channelID).
			Str("to", s.to).
			Msg("failed to send reply")
	}
}

func (s *channelSink) CallStatus(status domain.CallStatus, reason string) {
	s.log.Debug().
		Str("to", s.to).
		Str("status", string(status)).
		Str("reason", reason).
		Msg("call status")
}

func (s *channelSink) Close(after time.Duration) {
	s.log.Debug().Str("to", s.to).Dur("after", after).Msg("conversation closed")
}

// textOnly is the media of a text channel: there is no microphone.
type textOnly struct{}

func (textOnly) RequestMicrophone(context.Context) (call.Stream, error) {
	return nil, call.ErrNoDevice
}

func (textOnly) AudioInputs(context.Context) ([]call.Device, error) { return nil, nil }
