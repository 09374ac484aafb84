package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/meeting"
)

// Texts shown to the caller during escalation.
const (
	TextInitiating       = "Initiating call..."
	TextWaiting          = "Please wait while we connect you to our agent."
	TextConnected        = "You are now connected to our agent."
	TextBusy             = "All our agents are busy right now. We will call you back shortly."
	TextEnded            = "Call ended."
	TextPermissionDenied = "Microphone access was denied. Please allow microphone access to talk to our agent."
	TextNoDevice         = "No microphone was found. Please connect a microphone to talk to our agent."
	TextSessionFailed    = "The call could not be connected. Please try again later."
	TextAudioInputFailed = "Your microphone stopped working, so the call was ended."
)

// Reasons attached to status changes.
const (
	ReasonPermissionDenied = "permission_denied"
	ReasonNoDevice         = "no_device"
	ReasonSetupFailed      = "setup_failed"
	ReasonSessionFailed    = "session_failed"
	ReasonAudioInputFailed = "audio_input_failed"
	ReasonTimeout          = "timeout"
	ReasonRemoteEnd        = "remote_end"
	ReasonHangup           = "hangup"
)

// Events receives everything a call produces. Implementations are invoked
// one at a time and must not call back into the Manager.
type Events interface {
	CallMessage(msg domain.Message)
	CallStatus(status domain.CallStatus, reason string)
	CallClose(after time.Duration)
}

// Deps are the collaborators a call attempt uses.
type Deps struct {
	Devices  MediaDevices
	Setup    meeting.Setup
	Sessions SessionFactory
}

// Options tunes call timing.
type Options struct {
	ConnectTimeout time.Duration
	GraceDelay     time.Duration
	Clock          Clock
}

// Manager runs at most one call attempt at a time for one conversation.
type Manager struct {
	deps   Deps
	events Events
	opts   Options
	log    *logging.Logger

	mu     sync.Mutex
	status domain.CallStatus
	active *attempt
}

// NewManager creates an idle manager.
func NewManager(deps Deps, events Events, opts Options, log *logging.Logger) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	return &Manager{
		deps:   deps,
		events: events,
		opts:   opts,
		log:    log.Sub("call"),
		status: domain.CallIdle,
	}
}

// Status returns the current call status.
func (m *Manager) Status() domain.CallStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start escalates to a live call. It returns false without doing anything
// while another attempt is connecting or connected. Otherwise it blocks
// until the session has been started (or the attempt failed); connection,
// timeout and remote hangup are reported later through Events.
func (m *Manager) Start(ctx context.Context, attrs meeting.Attributes) bool {
	m.mu.Lock()
	if m.status.Active() {
		m.mu.Unlock()
		m.log.Debug().Str("status", string(m.status)).Msg("call already in progress")
		return false
	}
	a := &attempt{m: m}
	m.active = a
	m.setStatus(domain.CallConnecting, "")
	m.events.CallMessage(domain.BotMessage(TextInitiating))
	m.mu.Unlock()

	if err := a.establish(ctx, attrs.WithDefaults()); err != nil {
		a.fail(err)
	}
	return true
}

// Hangup ends the active attempt at the caller's request. It reports
// whether there was a call to end.
func (m *Manager) Hangup() bool {
	m.mu.Lock()
	a := m.active
	if a == nil {
		m.mu.Unlock()
		return false
	}
	cleanup := a.releaseLocked()
	m.setStatus(domain.CallEnded, ReasonHangup)
	m.events.CallMessage(domain.BotMessage(TextEnded))
	m.setStatus(domain.CallIdle, "")
	m.mu.Unlock()

	cleanup()
	return true
}

func (m *Manager) setStatus(s domain.CallStatus, reason string) {
	m.status = s
	m.events.CallStatus(s, reason)
}

// attempt owns every resource of one escalation: the session, its observer
// registration, its data subscription and the fallback timer. release runs
// exactly once on every exit path, and callbacks arriving after release are
// dropped.
type attempt struct {
	m *Manager

	// guarded by m.mu
	session    Session
	observing  bool
	subscribed bool
	timer      Timer
	released   bool
}

// current reports whether a is still the manager's live attempt. Callers
// hold m.mu.
func (a *attempt) current() bool {
	return !a.released && a.m.active == a
}

func (a *attempt) establish(ctx context.Context, attrs meeting.Attributes) error {
	m := a.m

	probe, err := m.deps.Devices.RequestMicrophone(ctx)
	if err != nil {
		return err
	}
	// The real session claims the microphone itself.
	probe.Release()

	data, err := m.deps.Setup.Setup(ctx, attrs)
	if err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	inputs, err := m.deps.Devices.AudioInputs(ctx)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return ErrNoDevice
	}

	session, err := m.deps.Sessions.NewSession(ctx, data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if !a.current() {
		m.mu.Unlock()
		session.Stop()
		return nil
	}
	a.session = session
	m.mu.Unlock()

	if err := session.ChooseAudioInput(ctx, inputs[0].ID); err != nil {
		return err
	}

	m.mu.Lock()
	if !a.current() {
		m.mu.Unlock()
		return nil
	}
	a.observing = true
	m.mu.Unlock()
	session.AddObserver(a)

	if err := session.Start(ctx); err != nil {
		return err
	}
	if err := session.BindAudioOutput(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if !a.current() {
		m.mu.Unlock()
		return nil
	}
	if m.status == domain.CallConnecting {
		a.timer = m.opts.Clock.AfterFunc(m.opts.ConnectTimeout, a.timeout)
		m.events.CallMessage(domain.BotMessage(TextWaiting))
	}
	a.subscribed = true
	m.mu.Unlock()

	session.SubscribeData(EndTopic, a.onData)
	return nil
}

// fail ends the attempt after an error in the setup steps.
func (a *attempt) fail(err error) {
	m := a.m
	m.mu.Lock()
	if !a.current() {
		m.mu.Unlock()
		return
	}
	cleanup := a.releaseLocked()

	text, reason := describe(err)
	m.log.Warn().Err(err).Str("reason", reason).Msg("call attempt failed")
	m.setStatus(domain.CallFailed, reason)
	m.events.CallMessage(domain.BotMessage(text))
	m.events.CallClose(m.opts.GraceDelay)
	m.mu.Unlock()

	cleanup()
}

func describe(err error) (text, reason string) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return TextPermissionDenied, ReasonPermissionDenied
	case errors.Is(err, ErrNoDevice):
		return TextNoDevice, ReasonNoDevice
	default:
		return meeting.UserMessage(err), ReasonSetupFailed
	}
}

// SessionStarted marks the call connected and disarms the fallback timer.
func (a *attempt) SessionStarted() {
	m := a.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if !a.current() || m.status != domain.CallConnecting {
		return
	}
	a.stopTimer()
	m.setStatus(domain.CallConnected, "")
	m.events.CallMessage(domain.BotMessage(TextConnected))
}

// SessionFailed ends the attempt with a session error.
func (a *attempt) SessionFailed(err error) {
	a.terminate(domain.CallFailed, ReasonSessionFailed, TextSessionFailed, err)
}

// AudioInputFailed ends the attempt when the microphone stops working.
func (a *attempt) AudioInputFailed(err error) {
	a.terminate(domain.CallFailed, ReasonAudioInputFailed, TextAudioInputFailed, err)
}

func (a *attempt) timeout() {
	m := a.m
	m.mu.Lock()
	if !a.current() || m.status != domain.CallConnecting {
		m.mu.Unlock()
		return
	}
	a.timer = nil
	m.mu.Unlock()
	a.terminate(domain.CallFailed, ReasonTimeout, TextBusy, nil)
}

func (a *attempt) terminate(status domain.CallStatus, reason, text string, err error) {
	m := a.m
	m.mu.Lock()
	if !a.current() {
		m.mu.Unlock()
		return
	}
	cleanup := a.releaseLocked()
	m.log.Info().Err(err).Str("reason", reason).Msg("call ended")
	m.setStatus(status, reason)
	m.events.CallMessage(domain.BotMessage(text))
	m.events.CallClose(m.opts.GraceDelay)
	m.mu.Unlock()

	cleanup()
}

func (a *attempt) onData(text string) {
	if text != EndSignal {
		return
	}
	m := a.m
	m.mu.Lock()
	if !a.current() {
		m.mu.Unlock()
		return
	}
	cleanup := a.releaseLocked()
	m.setStatus(domain.CallEnded, ReasonRemoteEnd)
	m.events.CallMessage(domain.BotMessage(TextEnded))
	m.setStatus(domain.CallIdle, "")
	m.mu.Unlock()

	cleanup()
}

func (a *attempt) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// releaseLocked detaches a from the manager and returns the session
// teardown, which the caller runs after unlocking m.mu. Callers hold m.mu.
func (a *attempt) releaseLocked() func() {
	a.released = true
	if a.m.active == a {
		a.m.active = nil
	}
	a.stopTimer()

	session, observing, subscribed := a.session, a.observing, a.subscribed
	a.session, a.observing, a.subscribed = nil, false, false
	return func() {
		if session == nil {
			return
		}
		if subscribed {
			session.UnsubscribeData(EndTopic)
		}
		if observing {
			session.RemoveObserver(a)
		}
		session.Stop()
	}
}
