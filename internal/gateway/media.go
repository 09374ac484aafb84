package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/sharkchat/internal/call"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/meeting"
)

const defaultMediaTimeout = 60 * time.Second

// ErrMediaTimeout is returned when the widget does not answer a media request.
var ErrMediaTimeout = errors.New("gateway: media request timed out")

// Media request operations. The widget performs each against the browser's
// media devices and audio session library.
const (
	mediaOpMicrophone        = "microphone"
	mediaOpReleaseMicrophone = "releaseMicrophone"
	mediaOpAudioInputs       = "audioInputs"
	mediaOpCreateSession     = "createSession"
	mediaOpChooseAudioInput  = "chooseAudioInput"
	mediaOpStart             = "start"
	mediaOpBindAudioOutput   = "bindAudioOutput"
	mediaOpSubscribe         = "subscribe"
	mediaOpUnsubscribe       = "unsubscribe"
	mediaOpStop              = "stop"
)

// Media event types reported by the widget.
const (
	mediaEventStarted          = "started"
	mediaEventFailed           = "failed"
	mediaEventAudioInputFailed = "audioInputFailed"
	mediaEventData             = "data"
)

// mediaRequest is the payload of a media.request event.
type mediaRequest struct {
	ID             string                  `json:"id"`
	Op             string                  `json:"op"`
	SessionID      string                  `json:"sessionId,omitempty"`
	DeviceID       string                  `json:"deviceId,omitempty"`
	Topic          string                  `json:"topic,omitempty"`
	ConnectionData *meeting.ConnectionData `json:"connectionData,omitempty"`
}

// mediaResult answers a media request (media.result params).
type mediaResult struct {
	ID        string        `json:"id"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	ErrorName string        `json:"errorName,omitempty"` // DOMException name from getUserMedia
	Devices   []call.Device `json:"devices,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
}

// err maps a failed result onto the call package's sentinel errors.
func (r mediaResult) err() error {
	if r.OK {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = r.ErrorName
	}
	switch r.ErrorName {
	case "NotAllowedError", "SecurityError":
		return fmt.Errorf("%w: %s", call.ErrPermissionDenied, msg)
	case "NotFoundError", "OverconstrainedError":
		return fmt.Errorf("%w: %s", call.ErrNoDevice, msg)
	}
	if msg == "" {
		msg = "media request failed"
	}
	return errors.New(msg)
}

// mediaEvent is a session callback reported by the widget (media.event params).
type mediaEvent struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Topic     string `json:"topic,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
}

// mediaBridge drives the widget's audio hardware and session over the
// WebSocket. It implements call.MediaDevices and call.SessionFactory.
type mediaBridge struct {
	client  *Client
	timeout time.Duration
	seq     func(int64) int64
	log     *logging.Logger

	mu       sync.Mutex
	pending  map[string]chan mediaResult
	sessions map[string]*remoteSession
}

var (
	_ call.MediaDevices   = (*mediaBridge)(nil)
	_ call.SessionFactory = (*mediaBridge)(nil)
	_ call.Session        = (*remoteSession)(nil)
)

func newMediaBridge(c *Client, timeout time.Duration, seq func(int64) int64, log *logging.Logger) *mediaBridge {
	if timeout <= 0 {
		timeout = defaultMediaTimeout
	}
	return &mediaBridge{
		client:   c,
		timeout:  timeout,
		seq:      seq,
		log:      log,
		pending:  make(map[string]chan mediaResult),
		sessions: make(map[string]*remoteSession),
	}
}

// request sends a media request and waits for its result.
func (b *mediaBridge) request(ctx context.Context, req mediaRequest) (mediaResult, error) {
	req.ID = uuid.New().String()
	ch := make(chan mediaResult, 1)

	b.mu.Lock()
	b.pending[req.ID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	if err := b.client.SendEvent(EventMediaRequest, req, b.seq(1)); err != nil {
		return mediaResult{}, fmt.Errorf("sending %s request: %w", req.Op, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, res.err()
	case <-timer.C:
		return mediaResult{}, fmt.Errorf("%s: %w", req.Op, ErrMediaTimeout)
	case <-ctx.Done():
		return mediaResult{}, ctx.Err()
	case <-b.client.Context().Done():
		return mediaResult{}, ErrClientClosed
	}
}

// notify sends a media request nobody waits for.
func (b *mediaBridge) notify(req mediaRequest) {
	req.ID = uuid.New().String()
	if err := b.client.SendEvent(EventMediaRequest, req, b.seq(1)); err != nil {
		b.log.Debug().Err(err).Str("op", req.Op).Msg("media notification dropped")
	}
}

// resolve hands a result to its waiting request. It reports false for
// unknown or already answered ids.
func (b *mediaBridge) resolve(res mediaResult) bool {
	b.mu.Lock()
	ch, ok := b.pending[res.ID]
	delete(b.pending, res.ID)
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	return true
}

// dispatch routes a session callback to its session.
func (b *mediaBridge) dispatch(ev mediaEvent) bool {
	b.mu.Lock()
	sess, ok := b.sessions[ev.SessionID]
	b.mu.Unlock()
	if !ok {
		return false
	}
	sess.handle(ev)
	return true
}

// close forgets every session; pending requests end with the client context.
func (b *mediaBridge) close() {
	b.mu.Lock()
	b.sessions = make(map[string]*remoteSession)
	b.mu.Unlock()
}

func (b *mediaBridge) RequestMicrophone(ctx context.Context) (call.Stream, error) {
	if _, err := b.request(ctx, mediaRequest{Op: mediaOpMicrophone}); err != nil {
		return nil, err
	}
	return microphoneProbe{b}, nil
}

func (b *mediaBridge) AudioInputs(ctx context.Context) ([]call.Device, error) {
	res, err := b.request(ctx, mediaRequest{Op: mediaOpAudioInputs})
	if err != nil {
		return nil, err
	}
	return res.Devices, nil
}

func (b *mediaBridge) NewSession(ctx context.Context, data meeting.ConnectionData) (call.Session, error) {
	res, err := b.request(ctx, mediaRequest{Op: mediaOpCreateSession, ConnectionData: &data})
	if err != nil {
		return nil, err
	}
	if res.SessionID == "" {
		return nil, errors.New("widget returned no session id")
	}
	sess := &remoteSession{
		bridge: b,
		id:     res.SessionID,
		data:   make(map[string]func(string)),
	}
	b.mu.Lock()
	b.sessions[sess.id] = sess
	b.mu.Unlock()
	return sess, nil
}

type microphoneProbe struct{ b *mediaBridge }

func (p microphoneProbe) Release() {
	p.b.notify(mediaRequest{Op: mediaOpReleaseMicrophone})
}

// remoteSession is an audio session living in the widget.
type remoteSession struct {
	bridge *mediaBridge
	id     string

	mu        sync.Mutex
	observers []call.Observer
	data      map[string]func(string)
}

func (r *remoteSession) ChooseAudioInput(ctx context.Context, deviceID string) error {
	_, err := r.bridge.request(ctx, mediaRequest{Op: mediaOpChooseAudioInput, SessionID: r.id, DeviceID: deviceID})
	return err
}

func (r *remoteSession) AddObserver(o call.Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

func (r *remoteSession) RemoveObserver(o call.Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.observers {
		if existing == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *remoteSession) Start(ctx context.Context) error {
	_, err := r.bridge.request(ctx, mediaRequest{Op: mediaOpStart, SessionID: r.id})
	return err
}

func (r *remoteSession) BindAudioOutput(ctx context.Context) error {
	_, err := r.bridge.request(ctx, mediaRequest{Op: mediaOpBindAudioOutput, SessionID: r.id})
	return err
}

func (r *remoteSession) SubscribeData(topic string, fn func(text string)) {
	r.mu.Lock()
	r.data[topic] = fn
	r.mu.Unlock()
	r.bridge.notify(mediaRequest{Op: mediaOpSubscribe, SessionID: r.id, Topic: topic})
}

func (r *remoteSession) UnsubscribeData(topic string) {
	r.mu.Lock()
	delete(r.data, topic)
	r.mu.Unlock()
	r.bridge.notify(mediaRequest{Op: mediaOpUnsubscribe, SessionID: r.id, Topic: topic})
}

func (r *remoteSession) Stop() {
	r.bridge.mu.Lock()
	delete(r.bridge.sessions, r.id)
	r.bridge.mu.Unlock()
	r.bridge.notify(mediaRequest{Op: mediaOpStop, SessionID: r.id})
}

// handle delivers a widget callback outside the session lock.
func (r *remoteSession) handle(ev mediaEvent) {
	r.mu.Lock()
	observers := append([]call.Observer(nil), r.observers...)
	fn := r.data[ev.Topic]
	r.mu.Unlock()

	switch ev.Type {
	case mediaEventStarted:
		for _, o := range observers {
			o.SessionStarted()
		}
	case mediaEventFailed:
		err := errors.New(ev.Error)
		for _, o := range observers {
			o.SessionFailed(err)
		}
	case mediaEventAudioInputFailed:
		err := errors.New(ev.Error)
		for _, o := range observers {
			o.AudioInputFailed(err)
		}
	case mediaEventData:
		if fn != nil {
			fn(ev.Text)
		}
	default:
		r.bridge.log.Debug().Str("type", ev.Type).Msg("unknown media event")
	}
}
