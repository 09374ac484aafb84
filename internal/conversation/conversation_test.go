package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/sharkchat/internal/call"
	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/hooks"
	"github.com/soyeahso/sharkchat/internal/identity"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/meeting"
	"github.com/soyeahso/sharkchat/internal/store"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type fakeLookup struct {
	rec   identity.Record
	err   error
	calls []string
}

func (f *fakeLookup) Lookup(_ context.Context, phone string) (identity.Record, error) {
	f.calls = append(f.calls, phone)
	return f.rec, f.err
}

type fakeBackend struct {
	replies []domain.Message
	calls   []string
}

func (f *fakeBackend) Forward(_ context.Context, text, sessionID string) []domain.Message {
	f.calls = append(f.calls, text)
	if f.replies != nil {
		return f.replies
	}
	return []domain.Message{domain.BotMessage("echo: " + text)}
}

type fakeCaller struct {
	events call.Events
	starts []meeting.Attributes
	hangs  int
	status domain.CallStatus
}

func (f *fakeCaller) Start(_ context.Context, attrs meeting.Attributes) bool {
	if f.status.Active() {
		return false
	}
	f.starts = append(f.starts, attrs)
	f.status = domain.CallConnecting
	return true
}

func (f *fakeCaller) Hangup() bool {
	f.hangs++
	active := f.status.Active()
	f.status = domain.CallIdle
	return active
}

func (f *fakeCaller) Status() domain.CallStatus {
	if f.status == "" {
		return domain.CallIdle
	}
	return f.status
}

type recordingSink struct {
	mu       sync.Mutex
	messages []domain.Message
	statuses []domain.CallStatus
	closes   []time.Duration
}

func (s *recordingSink) Deliver(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) CallStatus(status domain.CallStatus, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) Close(after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes = append(s.closes, after)
}

type fixture struct {
	lookup  *fakeLookup
	backend *fakeBackend
	caller  *fakeCaller
	sink    *recordingSink
	store   *store.MemoryStore
	hooks   *hooks.Manager
	conv    *Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		lookup:  &fakeLookup{rec: identity.Record{Zip: "90210"}},
		backend: &fakeBackend{},
		caller:  &fakeCaller{},
		sink:    &recordingSink{},
		store:   store.NewMemoryStore(),
		hooks:   hooks.NewManager(silentLog()),
	}
	f.conv = New(
		domain.SessionKey{ChannelID: "widget", ChatID: "client-1"},
		Deps{Lookup: f.lookup, Backend: f.backend, Store: f.store, Hooks: f.hooks},
		Shell{Sink: f.sink, NewCaller: func(ev call.Events) Caller {
			f.caller.events = ev
			return f.caller
		}},
		Options{},
		silentLog(),
	)
	require.NoError(t, f.conv.Open(context.Background()))
	return f
}

func (f *fixture) send(t *testing.T, texts ...string) {
	t.Helper()
	for _, text := range texts {
		require.NoError(t, f.conv.Send(context.Background(), text))
	}
}

func (f *fixture) lastText() string {
	msgs := f.conv.Messages()
	return msgs[len(msgs)-1].Text
}

func TestOpenPostsWelcome(t *testing.T) {
	f := newFixture(t)

	msgs := f.conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, TextWelcome, msgs[0].Text)
	assert.Equal(t, []string{AnswerYes, AnswerNo}, msgs[0].Action.Labels())
	assert.Equal(t, domain.StateWelcome, f.conv.State())
	assert.Len(t, f.sink.messages, 1)

	stored, err := f.store.Get(context.Background(), f.conv.ID())
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 1)
}

func TestExistingCustomerFlow(t *testing.T) {
	f := newFixture(t)

	f.send(t, "yes")
	assert.Equal(t, domain.StateExistingCustomerPhone, f.conv.State())

	f.send(t, "5551234567")
	assert.Equal(t, []string{"+15551234567"}, f.lookup.calls)
	assert.Equal(t, domain.StateExistingCustomerZip, f.conv.State())
	assert.Equal(t, "90210", f.conv.Context().CapturedZip)
	assert.Equal(t, "5551234567", f.conv.Context().CapturedPhone)
	assert.Equal(t, TextAskZip, f.lastText())

	f.send(t, "12345")
	assert.Equal(t, domain.StateExistingCustomerZip, f.conv.State())
	assert.Equal(t, TextZipMismatch, f.lastText())

	f.send(t, "90210")
	assert.Equal(t, domain.StateConnectedToBackend, f.conv.State())
	assert.Equal(t, []string{"lrzmsinu 5551234567"}, f.backend.calls)
	assert.Equal(t, "echo: lrzmsinu 5551234567", f.lastText())

	f.send(t, "What is my balance?")
	assert.Equal(t, "What is my balance?", f.backend.calls[1])

	stored, err := f.store.Get(context.Background(), f.conv.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateConnectedToBackend, stored.State)
	assert.Equal(t, f.conv.Messages(), stored.Messages)
}

func TestLookupFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.lookup.err = errors.New("502 bad gateway")

	f.send(t, "yes", "5551234567")

	assert.Equal(t, domain.StateExistingCustomerPhone, f.conv.State())
	assert.Equal(t, TextLookupFailed, f.lastText())

	f.lookup.err = nil
	f.lookup.rec = identity.Record{}
	f.send(t, "5551234567")
	assert.Equal(t, TextPhoneNotRegistered, f.lastText())
	assert.Len(t, f.lookup.calls, 2)
}

func TestMissingLookupReportsFailure(t *testing.T) {
	f := newFixture(t)
	f.conv.deps.Lookup = nil

	f.send(t, "yes", "5551234567")
	assert.Equal(t, TextLookupFailed, f.lastText())
}

func TestNewCustomerEscalates(t *testing.T) {
	f := newFixture(t)

	f.send(t, "no", "Ana", "5559876543")

	require.Len(t, f.caller.starts, 1)
	assert.Equal(t, meeting.Attributes{UserPhone: "5559876543", UserName: "Ana"}, f.caller.starts[0])
	assert.Equal(t, domain.StateNewCustomerPhone, f.conv.State())
}

func TestEscalationWithoutCallSupport(t *testing.T) {
	sink := &recordingSink{}
	conv := New(
		domain.SessionKey{ChannelID: "widget", ChatID: "client-2"},
		Deps{Lookup: &fakeLookup{}, Backend: &fakeBackend{}},
		Shell{Sink: sink, NewCaller: func(call.Events) Caller { return nil }},
		Options{},
		silentLog(),
	)
	require.NoError(t, conv.Open(context.Background()))

	for _, text := range []string{"no", "Ann", "5551234567"} {
		require.NoError(t, conv.Send(context.Background(), text))
	}

	msgs := conv.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, domain.OriginBot, last.Origin)
	assert.Equal(t, TextCallUnavailable, last.Text)
	assert.True(t, conv.Closed())
	assert.Equal(t, []time.Duration{2 * time.Second}, sink.closes)
	assert.Equal(t, domain.CallIdle, conv.CallStatusNow())
}

func TestEscalationPhraseWithoutCallSupport(t *testing.T) {
	conv := New(
		domain.SessionKey{ChannelID: "widget", ChatID: "client-3"},
		Deps{},
		Shell{},
		Options{},
		silentLog(),
	)
	require.NoError(t, conv.Open(context.Background()))

	require.NoError(t, conv.Send(context.Background(), domain.PhraseEscalate))

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, TextCallUnavailable, msgs[2].Text)
	assert.True(t, conv.Closed())
}

func TestEmptyInputAppendsNothing(t *testing.T) {
	f := newFixture(t)

	err := f.conv.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Len(t, f.conv.Messages(), 1)
}

func TestEveryTurnAppendsUserMessageFirst(t *testing.T) {
	f := newFixture(t)

	f.send(t, " maybe ")

	msgs := f.conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, domain.OriginUser, msgs[1].Origin)
	assert.Equal(t, "maybe", msgs[1].Text)
	assert.Equal(t, TextWelcomeRetry, msgs[2].Text)
}

func TestDeclineClosesFromAnyState(t *testing.T) {
	f := newFixture(t)
	f.send(t, "no", "Ana")

	f.send(t, domain.PhraseDecline)

	assert.Equal(t, TextFarewell, f.lastText())
	assert.Equal(t, []time.Duration{2 * time.Second}, f.sink.closes)
	assert.True(t, f.conv.Closed())
	assert.Equal(t, domain.StateNewCustomerPhone, f.conv.State())

	assert.ErrorIs(t, f.conv.Send(context.Background(), "hello"), ErrClosed)

	stored, err := f.store.Get(context.Background(), f.conv.ID())
	require.NoError(t, err)
	assert.NotNil(t, stored.ClosedAt)
}

func TestEscalationPhraseBypassesState(t *testing.T) {
	f := newFixture(t)

	f.send(t, domain.PhraseEscalate)

	require.Len(t, f.caller.starts, 1)
	assert.Equal(t, meeting.Attributes{}, f.caller.starts[0])
	assert.Equal(t, domain.StateWelcome, f.conv.State())
}

func TestBackendAgentOfferThenEscalate(t *testing.T) {
	f := newFixture(t)
	f.backend.replies = []domain.Message{domain.EscalationPrompt()}
	f.send(t, "yes", "5551234567", "90210")

	offer, _ := f.conv.transcript.Last()
	assert.Equal(t, []string{domain.PhraseEscalate, domain.PhraseDecline}, offer.Action.Labels())

	f.send(t, offer.Action.Labels()[0])
	assert.Len(t, f.caller.starts, 1)
	assert.Len(t, f.backend.calls, 1)
}

func TestSecondEscalationIgnoredWhileConnecting(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.conv.StartCall(context.Background()))
	assert.False(t, f.conv.StartCall(context.Background()))
	assert.Len(t, f.caller.starts, 1)
}

func TestCallEventsRecordAttempt(t *testing.T) {
	f := newFixture(t)

	timeouts := make(chan hooks.Payload, 1)
	f.hooks.On(hooks.EventCallTimeout, "test", func(_ context.Context, p hooks.Payload) error {
		timeouts <- p
		return nil
	})

	ev := f.caller.events
	ev.CallStatus(domain.CallConnecting, "")
	ev.CallMessage(domain.BotMessage(call.TextInitiating))
	ev.CallStatus(domain.CallFailed, call.ReasonTimeout)
	ev.CallMessage(domain.BotMessage(call.TextBusy))
	ev.CallClose(5 * time.Second)

	calls, err := f.store.Calls(context.Background(), f.conv.ID())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, domain.CallFailed, calls[0].Status)
	assert.Equal(t, call.ReasonTimeout, calls[0].Reason)
	assert.NotNil(t, calls[0].EndedAt)

	assert.Equal(t, []domain.CallStatus{domain.CallConnecting, domain.CallFailed}, f.sink.statuses)
	assert.Equal(t, []time.Duration{5 * time.Second}, f.sink.closes)
	assert.True(t, f.conv.Closed())
	assert.Zero(t, f.caller.hangs)
	assert.Equal(t, call.TextBusy, f.lastText())

	select {
	case p := <-timeouts:
		assert.Equal(t, f.conv.ID(), p.Data["sessionId"])
	case <-time.After(time.Second):
		t.Fatal("call_timeout hook not fired")
	}
}

func TestEndHangsUp(t *testing.T) {
	f := newFixture(t)
	f.conv.StartCall(context.Background())

	f.conv.End(context.Background())
	f.conv.End(context.Background())

	assert.Equal(t, 1, f.caller.hangs)
	assert.Equal(t, []time.Duration{0}, f.sink.closes)
}

type noMicrophone struct{}

func (noMicrophone) RequestMicrophone(context.Context) (call.Stream, error) {
	return nil, call.ErrNoDevice
}

func (noMicrophone) AudioInputs(context.Context) ([]call.Device, error) { return nil, nil }

func TestEscalationWithRealManager(t *testing.T) {
	sink := &recordingSink{}
	st := store.NewMemoryStore()
	conv := New(
		domain.SessionKey{ChannelID: "irc", ChatID: "ana"},
		Deps{Store: st},
		Shell{Sink: sink, NewCaller: func(ev call.Events) Caller {
			return call.NewManager(call.Deps{Devices: noMicrophone{}}, ev, call.Options{}, silentLog())
		}},
		Options{},
		silentLog(),
	)
	require.NoError(t, conv.Open(context.Background()))

	require.NoError(t, conv.Send(context.Background(), domain.PhraseEscalate))

	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.PhraseEscalate, msgs[1].Text)
	assert.Equal(t, call.TextInitiating, msgs[2].Text)
	assert.Equal(t, call.TextNoDevice, msgs[3].Text)
	assert.Equal(t, domain.CallFailed, conv.CallStatusNow())
	assert.True(t, conv.Closed())
	assert.Equal(t, []time.Duration{5 * time.Second}, sink.closes)

	calls, err := st.Calls(context.Background(), conv.ID())
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, call.ReasonNoDevice, calls[0].Reason)
}
