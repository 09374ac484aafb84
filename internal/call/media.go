// Package call escalates a conversation to a live audio call with an agent.
package call

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/sharkchat/internal/meeting"
)

var (
	// ErrPermissionDenied means the caller refused microphone access.
	ErrPermissionDenied = errors.New("call: microphone permission denied")
	// ErrNoDevice means no audio input device is available.
	ErrNoDevice = errors.New("call: no audio input device")
)

// EndTopic and EndSignal form the in-band message the agent side sends to
// hang up.
const (
	EndTopic  = "callEnd"
	EndSignal = "end"
)

// Stream is a probe microphone stream obtained while checking permission.
type Stream interface {
	Release()
}

// Device is an audio input device.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// MediaDevices gives access to the caller's audio hardware.
type MediaDevices interface {
	// RequestMicrophone prompts for microphone access. It returns
	// ErrPermissionDenied or ErrNoDevice for the two expected refusals.
	RequestMicrophone(ctx context.Context) (Stream, error)
	// AudioInputs lists the available audio input devices.
	AudioInputs(ctx context.Context) ([]Device, error)
}

// Observer receives real-time session lifecycle callbacks.
type Observer interface {
	SessionStarted()
	SessionFailed(err error)
	AudioInputFailed(err error)
}

// Session is a real-time audio session joined with meeting connection data.
type Session interface {
	ChooseAudioInput(ctx context.Context, deviceID string) error
	AddObserver(o Observer)
	RemoveObserver(o Observer)
	Start(ctx context.Context) error
	BindAudioOutput(ctx context.Context) error
	SubscribeData(topic string, fn func(text string))
	UnsubscribeData(topic string)
	Stop()
}

// SessionFactory creates sessions.
type SessionFactory interface {
	NewSession(ctx context.Context, data meeting.ConnectionData) (Session, error)
}

// Timer is a pending fallback timer.
type Timer interface {
	Stop() bool
}

// Clock schedules fallback timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}
