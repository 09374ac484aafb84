package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/soyeahso/sharkchat/internal/conversation"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/meeting"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.setup != nil && s.cfg.Gateway.Widget.Provision {
		mux.Handle("POST /api/start-webrtc", meeting.Handler(s.setup, s.log))
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.HandleInline("health", s.rpcHealth)
	s.HandleInline("channels.status", s.rpcChannelsStatus)
	s.HandleInline("session.list", s.rpcSessionList)
	s.HandleInline("chat.history", s.rpcChatHistory)
	s.HandleInline("call.hangup", s.rpcCallHangup)
	s.HandleInline("media.result", s.rpcMediaResult)
	s.HandleInline("media.event", s.rpcMediaEvent)

	s.Handle("chat.open", s.rpcChatOpen)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("call.start", s.rpcCallStart)
}

// Built-in RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	}
	if !s.startedAt.IsZero() {
		resp.UptimeMs = time.Since(s.startedAt).Milliseconds()
	}
	if s.conversations != nil {
		st := s.conversations.Stats()
		resp.Conversations = st.Active
		resp.Calls = st.Calls
	}
	rc.Respond(resp)
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	if s.channels != nil {
		rc.Respond(map[string]any{"channels": s.channels.Status()})
		return
	}
	rc.Respond(map[string]any{"channels": []any{}})
}

func (s *Server) rpcSessionList(rc *RequestContext) {
	if !rc.Client.AuthResult.Operator() {
		rc.RespondError("forbidden", "session.list requires operator credentials")
		return
	}
	if s.conversations == nil {
		rc.Respond(map[string]any{"sessions": []any{}})
		return
	}
	rc.Respond(map[string]any{"sessions": s.conversations.List()})
}

// chatOpenResult answers chat.open; the transcript itself arrives as
// chat.message events.
type chatOpenResult struct {
	SessionID string `json:"sessionId"`
	Created   bool   `json:"created"`
}

func (s *Server) rpcChatOpen(rc *RequestContext) {
	if s.conversations == nil {
		rc.RespondError("unavailable", "chat is not configured")
		return
	}
	w := s.widgetFor(rc.Client)
	conv, created, err := s.conversations.Open(rc.Context(), w.key, w.shell(s))
	if err != nil {
		s.log.Error().Err(err).Str("connId", rc.Client.ConnID).Msg("opening conversation failed")
		rc.RespondError("internal", "could not open conversation")
		return
	}
	rc.Respond(chatOpenResult{SessionID: conv.ID(), Created: created})
}

type chatSendParams struct {
	Text string `json:"text"`
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	conv, ok := s.conversationFor(rc)
	if !ok {
		return
	}

	err := conv.Send(rc.Context(), p.Text)
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		rc.RespondError("invalid_params", "text is required")
	case errors.Is(err, conversation.ErrClosed):
		rc.RespondError("closed", "conversation has ended")
	case err != nil:
		rc.RespondError("internal", err.Error())
	default:
		rc.Respond(map[string]any{"state": conv.State()})
	}
}

// chatHistoryResult is the full transcript of the client's conversation.
type chatHistoryResult struct {
	SessionID  string            `json:"sessionId"`
	State      domain.State      `json:"state"`
	CallStatus domain.CallStatus `json:"callStatus"`
	Messages   []domain.Message  `json:"messages"`
}

func (s *Server) rpcChatHistory(rc *RequestContext) {
	conv, ok := s.conversationFor(rc)
	if !ok {
		return
	}
	rc.Respond(chatHistoryResult{
		SessionID:  conv.ID(),
		State:      conv.State(),
		CallStatus: conv.CallStatusNow(),
		Messages:   conv.Messages(),
	})
}

func (s *Server) rpcCallStart(rc *RequestContext) {
	conv, ok := s.conversationFor(rc)
	if !ok {
		return
	}
	if s.setup == nil {
		rc.RespondError("unavailable", "calls are not configured")
		return
	}
	started := conv.StartCall(rc.Context())
	rc.Respond(map[string]any{"started": started, "status": conv.CallStatusNow()})
}

func (s *Server) rpcCallHangup(rc *RequestContext) {
	conv, ok := s.conversationFor(rc)
	if !ok {
		return
	}
	rc.Respond(map[string]any{"hungUp": conv.Hangup()})
}

func (s *Server) rpcMediaResult(rc *RequestContext) {
	var res mediaResult
	if err := rc.Params(&res); err != nil || res.ID == "" {
		rc.RespondError("invalid_params", "media result requires an id")
		return
	}
	w, ok := s.widget(rc.Client)
	if !ok || !w.bridge.resolve(res) {
		rc.RespondError("not_found", "no pending media request "+res.ID)
		return
	}
	rc.Respond(map[string]any{"ok": true})
}

func (s *Server) rpcMediaEvent(rc *RequestContext) {
	var ev mediaEvent
	if err := rc.Params(&ev); err != nil || ev.SessionID == "" {
		rc.RespondError("invalid_params", "media event requires a sessionId")
		return
	}
	w, ok := s.widget(rc.Client)
	if !ok || !w.bridge.dispatch(ev) {
		rc.RespondError("not_found", "unknown media session "+ev.SessionID)
		return
	}
	rc.Respond(map[string]any{"ok": true})
}

// conversationFor returns the caller's open conversation, answering the
// request with an error when there is none.
func (s *Server) conversationFor(rc *RequestContext) (*conversation.Conversation, bool) {
	if s.conversations == nil {
		rc.RespondError("unavailable", "chat is not configured")
		return nil, false
	}
	conv, ok := s.conversations.Get(widgetKey(rc.Client))
	if !ok {
		rc.RespondError("not_found", "no open conversation, call chat.open first")
		return nil, false
	}
	return conv, true
}
