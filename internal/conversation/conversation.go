package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soyeahso/sharkchat/internal/call"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/hooks"
	"github.com/soyeahso/sharkchat/internal/identity"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/meeting"
	"github.com/soyeahso/sharkchat/internal/store"
)

// ErrClosed is returned for turns sent to a conversation that has ended.
var ErrClosed = errors.New("conversation: closed")

// IdentityLookup finds the stored record for a phone number.
type IdentityLookup interface {
	Lookup(ctx context.Context, phone string) (identity.Record, error)
}

// Backend answers free text. It never fails; failures come back as bot
// messages.
type Backend interface {
	Forward(ctx context.Context, text, sessionID string) []domain.Message
}

// Caller escalates to a live agent. *call.Manager implements it.
type Caller interface {
	Start(ctx context.Context, attrs meeting.Attributes) bool
	Hangup() bool
	Status() domain.CallStatus
}

// Sink receives everything a presentation shell renders. Calls are made one
// at a time in transcript order; implementations must not call back into
// the Conversation.
type Sink interface {
	Deliver(msg domain.Message)
	CallStatus(status domain.CallStatus, reason string)
	Close(after time.Duration)
}

// Shell is what a presentation surface attaches to a conversation.
type Shell struct {
	Sink Sink
	// NewCaller builds the conversation's call manager around its events.
	NewCaller func(events call.Events) Caller
}

// Deps are the collaborators shared by every conversation.
type Deps struct {
	Lookup  IdentityLookup
	Backend Backend
	Store   store.ConversationStore
	Hooks   *hooks.Manager
}

// Options tune conversation behavior.
type Options struct {
	Rules      Rules
	CloseDelay time.Duration
	Now        func() time.Time
}

// Conversation is one live support session. Turns are processed one at a
// time; call events arrive concurrently and are appended in the order they
// resolve.
type Conversation struct {
	key  domain.SessionKey
	deps Deps
	opts Options
	sink Sink
	call Caller
	log  *logging.Logger

	// turn serializes Send.
	turn sync.Mutex

	mu         sync.Mutex
	state      domain.State
	sc         domain.SessionContext
	transcript *domain.Transcript
	createdAt  time.Time
	lastActive time.Time
	closed     bool
	callID     int64
}

// New creates a conversation in the welcome state. It does nothing visible
// until Open.
func New(key domain.SessionKey, deps Deps, shell Shell, opts Options, log *logging.Logger) *Conversation {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CloseDelay <= 0 {
		opts.CloseDelay = 2 * time.Second
	}
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}
	sc := domain.NewSessionContext()
	now := opts.Now()
	c := &Conversation{
		key:        key,
		deps:       deps,
		opts:       opts,
		sink:       shell.Sink,
		log:        log.Sub("conversation").With("sessionId", sc.SessionID),
		state:      domain.StateWelcome,
		sc:         sc,
		transcript: domain.NewTranscript(),
		createdAt:  now,
		lastActive: now,
	}
	if shell.NewCaller != nil {
		c.call = shell.NewCaller(c)
	}
	return c
}

// ID returns the session identifier.
func (c *Conversation) ID() string { return c.sc.SessionID }

// Key returns the session key the conversation was opened under.
func (c *Conversation) Key() domain.SessionKey { return c.key }

// Open persists the conversation and posts the welcome message.
func (c *Conversation) Open(ctx context.Context) error {
	c.mu.Lock()
	sess := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.deps.Store.Create(ctx, sess); err != nil {
		return err
	}
	c.deps.Hooks.EmitAsync(ctx, hooks.EventSessionStart, map[string]any{
		"sessionId": sess.ID,
		"channel":   c.key.ChannelID,
		"chatId":    c.key.ChatID,
		"senderId":  c.key.SenderID,
	})
	c.append(ctx, WelcomeMessage())
	c.log.Info().Str("key", c.key.String()).Msg("conversation opened")
	return nil
}

// Send processes one user turn. It returns ErrEmptyInput for blank input
// and ErrClosed after the conversation ended; every other failure is
// reported to the user as a bot message.
func (c *Conversation) Send(ctx context.Context, text string) error {
	c.turn.Lock()
	defer c.turn.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	state, sc := c.state, c.sc
	c.lastActive = c.opts.Now()
	c.mu.Unlock()

	d, err := c.opts.Rules.Transition(state, sc, text)
	if err != nil {
		return err
	}

	c.deps.Hooks.EmitAsync(ctx, hooks.EventMessageReceived, map[string]any{
		"sessionId": sc.SessionID,
		"state":     string(state),
		"text":      d.Input,
	})
	c.append(ctx, domain.UserMessage(d.Input))
	c.apply(ctx, d)

	c.log.Debug().
		Str("from", string(state)).
		Str("to", string(d.Next)).
		Str("effect", d.Effect.String()).
		Msg("turn")

	switch d.Effect {
	case EffectLookup:
		rec, err := c.lookup(ctx, d.LookupPhone)
		if err != nil {
			c.log.Warn().Err(err).Msg("identity lookup failed")
		}
		c.apply(ctx, ApplyLookup(d.Context, rec, err))
	case EffectForward:
		c.append(ctx, c.forward(ctx, d.ForwardText, d.Context.SessionID)...)
	case EffectEscalate:
		c.StartCall(ctx)
	case EffectClose:
		c.closeAfter(ctx, c.opts.CloseDelay, true)
	}
	return nil
}

func (c *Conversation) lookup(ctx context.Context, phone string) (identity.Record, error) {
	if c.deps.Lookup == nil {
		return identity.Record{}, identity.ErrNotConfigured
	}
	return c.deps.Lookup.Lookup(ctx, phone)
}

func (c *Conversation) forward(ctx context.Context, text, sessionID string) []domain.Message {
	if c.deps.Backend == nil {
		return []domain.Message{domain.BotMessage(TextBackendUnavailable)}
	}
	return c.deps.Backend.Forward(ctx, text, sessionID)
}

// StartCall escalates to a live agent with the captured caller details. It
// reports false when a call is already connecting or connected. A shell
// without call support gets an apology and the conversation closes.
func (c *Conversation) StartCall(ctx context.Context) bool {
	if c.call == nil {
		c.append(ctx, domain.BotMessage(TextCallUnavailable))
		c.closeAfter(ctx, c.opts.CloseDelay, false)
		return false
	}
	c.mu.Lock()
	attrs := meeting.Attributes{UserPhone: c.sc.CapturedPhone, UserName: c.sc.CapturedName}
	c.lastActive = c.opts.Now()
	c.mu.Unlock()
	return c.call.Start(ctx, attrs)
}

// Hangup ends the caller's active call.
func (c *Conversation) Hangup() bool {
	if c.call == nil {
		return false
	}
	return c.call.Hangup()
}

// End closes the conversation immediately, hanging up any call.
func (c *Conversation) End(ctx context.Context) {
	c.closeAfter(ctx, 0, true)
}

// apply records a decision's state change and messages.
func (c *Conversation) apply(ctx context.Context, d Decision) {
	c.mu.Lock()
	changed := c.state != d.Next || c.sc != d.Context
	c.state, c.sc = d.Next, d.Context
	c.mu.Unlock()

	if changed {
		if err := c.deps.Store.SaveState(ctx, d.Context.SessionID, d.Next, d.Context); err != nil {
			c.log.Warn().Err(err).Msg("saving state failed")
		}
	}
	c.append(ctx, d.Messages...)
}

// append adds messages to the transcript, persists them and hands them to
// the sink, all under c.mu so every observer sees the same order.
func (c *Conversation) append(ctx context.Context, msgs ...domain.Message) {
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.transcript.Append(msgs...)
	if err := c.deps.Store.Append(ctx, c.sc.SessionID, stored...); err != nil {
		c.log.Warn().Err(err).Int("count", len(stored)).Msg("persisting messages failed")
	}
	for _, m := range stored {
		if m.Origin == domain.OriginBot {
			c.deps.Hooks.EmitAsync(ctx, hooks.EventMessageSending, map[string]any{
				"sessionId": c.sc.SessionID,
				"text":      m.Text,
			})
		}
		if c.sink != nil {
			c.sink.Deliver(m)
		}
	}
}

// closeAfter ends the conversation and tells the sink to close after d.
// hangup is false when called from a call event, where the call has
// already been released.
func (c *Conversation) closeAfter(ctx context.Context, d time.Duration, hangup bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	now := c.opts.Now()
	id := c.sc.SessionID
	if c.sink != nil {
		c.sink.Close(d)
	}
	c.mu.Unlock()

	if hangup {
		c.Hangup()
	}
	if err := c.deps.Store.End(ctx, id, now); err != nil {
		c.log.Warn().Err(err).Msg("ending conversation failed")
	}
	c.deps.Hooks.EmitAsync(ctx, hooks.EventSessionEnd, map[string]any{
		"sessionId": id,
		"messages":  c.transcript.Len(),
	})
	c.log.Info().Dur("after", d).Msg("conversation closed")
}

// CallMessage implements call.Events.
func (c *Conversation) CallMessage(msg domain.Message) {
	c.append(context.Background(), msg)
}

// CallStatus implements call.Events.
func (c *Conversation) CallStatus(status domain.CallStatus, reason string) {
	ctx := context.Background()
	now := c.opts.Now()

	c.mu.Lock()
	id := c.sc.SessionID
	attrs := map[string]any{
		"sessionId": id,
		"phone":     c.sc.CapturedPhone,
		"name":      c.sc.CapturedName,
		"status":    string(status),
		"reason":    reason,
	}
	callID := c.callID
	switch status {
	case domain.CallConnecting:
		started, err := c.deps.Store.StartCall(ctx, id, now)
		if err != nil {
			c.log.Warn().Err(err).Msg("recording call start failed")
		}
		c.callID = started
	case domain.CallConnected, domain.CallFailed, domain.CallEnded:
		if callID != 0 {
			if err := c.deps.Store.FinishCall(ctx, callID, status, reason, now); err != nil {
				c.log.Warn().Err(err).Int64("callId", callID).Msg("recording call status failed")
			}
		}
	}
	if c.sink != nil {
		c.sink.CallStatus(status, reason)
	}
	c.mu.Unlock()

	if event := callEvent(status, reason); event != "" {
		c.deps.Hooks.EmitAsync(ctx, event, attrs)
	}
}

func callEvent(status domain.CallStatus, reason string) string {
	switch status {
	case domain.CallConnecting:
		return hooks.EventCallStarted
	case domain.CallConnected:
		return hooks.EventCallConnected
	case domain.CallFailed:
		if reason == call.ReasonTimeout {
			return hooks.EventCallTimeout
		}
		return hooks.EventCallFailed
	case domain.CallEnded:
		return hooks.EventCallEnded
	default:
		return ""
	}
}

// CallClose implements call.Events.
func (c *Conversation) CallClose(after time.Duration) {
	c.closeAfter(context.Background(), after, false)
}

// State returns the current conversation state.
func (c *Conversation) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Context returns the captured session context.
func (c *Conversation) Context() domain.SessionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sc
}

// Messages returns the transcript so far.
func (c *Conversation) Messages() []domain.Message {
	return c.transcript.Messages()
}

// CallStatusNow returns the live call status, or idle without call support.
func (c *Conversation) CallStatusNow() domain.CallStatus {
	if c.call == nil {
		return domain.CallIdle
	}
	return c.call.Status()
}

// Closed reports whether the conversation has ended.
func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastActive returns the time of the last user activity.
func (c *Conversation) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Snapshot returns the conversation as a session record with its transcript.
func (c *Conversation) Snapshot() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.snapshotLocked()
	sess.Messages = c.transcript.Messages()
	return sess
}

func (c *Conversation) snapshotLocked() domain.Session {
	return domain.Session{
		ID:        c.sc.SessionID,
		Key:       c.key,
		State:     c.state,
		Context:   c.sc,
		CreatedAt: c.createdAt,
		UpdatedAt: c.lastActive,
	}
}
