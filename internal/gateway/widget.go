package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/sharkchat/internal/call"
	"github.com/soyeahso/sharkchat/internal/conversation"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
)

// WidgetChannelID is the session-key channel of widget conversations.
const WidgetChannelID = "widget"

// widgetConn is the widget state of one connected client: its conversation
// key and the media bridge its call manager talks through.
type widgetConn struct {
	client *Client
	key    domain.SessionKey
	bridge *mediaBridge
}

func widgetKey(c *Client) domain.SessionKey {
	return domain.SessionKey{ChannelID: WidgetChannelID, ChatID: c.ConnID}
}

// widgetFor returns the client's widget state, creating it on first use.
func (s *Server) widgetFor(c *Client) *widgetConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.widgets[c.ConnID]; ok {
		return w
	}
	w := &widgetConn{
		client: c,
		key:    widgetKey(c),
		bridge: newMediaBridge(c, s.mediaTTL, s.eventSeq.Add, s.log.Sub("media")),
	}
	s.widgets[c.ConnID] = w
	return w
}

func (s *Server) widget(c *Client) (*widgetConn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.widgets[c.ConnID]
	return w, ok
}

// dropWidget ends the conversation of a disconnected client.
func (s *Server) dropWidget(c *Client) {
	s.mu.Lock()
	w, ok := s.widgets[c.ConnID]
	delete(s.widgets, c.ConnID)
	s.mu.Unlock()
	if !ok {
		return
	}
	w.bridge.close()
	if s.conversations != nil && s.conversations.End(context.Background(), w.key) {
		s.log.Debug().Str("connId", c.ConnID).Msg("widget conversation ended on disconnect")
	}
}

// shell attaches a conversation to the widget: transcript and call status
// go out as events, and calls run against the widget's media bridge.
func (w *widgetConn) shell(s *Server) conversation.Shell {
	sink := &widgetSink{client: w.client, seq: s.eventSeq.Add, log: s.log}
	return conversation.Shell{
		Sink: sink,
		NewCaller: func(ev call.Events) conversation.Caller {
			if conv, ok := ev.(interface{ ID() string }); ok {
				sink.bind(conv.ID())
			}
			if s.setup == nil {
				return nil
			}
			deps := call.Deps{Devices: w.bridge, Setup: s.setup, Sessions: w.bridge}
			return call.NewManager(deps, ev, s.callOpts, s.log.With("connId", w.client.ConnID))
		},
	}
}

// widgetSink renders a conversation as events on one client.
type widgetSink struct {
	client *Client
	seq    func(int64) int64
	log    *logging.Logger

	mu        sync.Mutex
	sessionID string
}

func (k *widgetSink) bind(id string) {
	k.mu.Lock()
	k.sessionID = id
	k.mu.Unlock()
}

func (k *widgetSink) id() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sessionID
}

func (k *widgetSink) send(event string, payload any) {
	if err := k.client.SendEvent(event, payload, k.seq(1)); err != nil {
		k.log.Debug().Err(err).Str("event", event).Str("connId", k.client.ConnID).Msg("widget event dropped")
	}
}

func (k *widgetSink) Deliver(msg domain.Message) {
	k.send(EventChatMessage, ChatMessagePayload{SessionID: k.id(), Message: msg})
}

func (k *widgetSink) CallStatus(status domain.CallStatus, reason string) {
	k.send(EventCallStatus, CallStatusPayload{SessionID: k.id(), Status: status, Reason: reason})
}

func (k *widgetSink) Close(after time.Duration) {
	k.send(EventChatClose, ChatClosePayload{SessionID: k.id(), AfterMs: after.Milliseconds()})
}
