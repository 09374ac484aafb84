// Package meeting provisions the real-time audio session a caller joins when
// a conversation escalates to a live agent.
package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

// Caller attribute defaults used when the conversation has not captured them.
const (
	DefaultUserPhone = "Unknown"
	DefaultUserName  = "Customer"
)

// ErrInvalidConnectionData is returned when call setup succeeds but the
// response lacks the meeting or attendee structure.
var ErrInvalidConnectionData = errors.New("meeting: invalid connection data")

// User-facing texts for setup failures.
const (
	TextInvalidConnectionData = "Invalid connection data from API. Check AWS configuration."
	TextSetupFailed           = "Error connecting to agent."
)

// UserMessage returns the text shown to a caller whose call setup failed.
func UserMessage(err error) string {
	var se *SetupError
	switch {
	case errors.As(err, &se) && se.Message != "":
		return se.Message
	case errors.Is(err, ErrInvalidConnectionData):
		return TextInvalidConnectionData
	default:
		return TextSetupFailed
	}
}

// Attributes describe the caller to the agent side.
type Attributes struct {
	UserPhone string `json:"userPhone"`
	UserName  string `json:"userName"`
}

// WithDefaults fills empty attributes with DefaultUserPhone and DefaultUserName.
func (a Attributes) WithDefaults() Attributes {
	if a.UserPhone == "" {
		a.UserPhone = DefaultUserPhone
	}
	if a.UserName == "" {
		a.UserName = DefaultUserName
	}
	return a
}

// ConnectionData carries the meeting and attendee records a media client
// needs to join. Both are passed through to the client untouched.
type ConnectionData struct {
	Meeting  json.RawMessage `json:"Meeting"`
	Attendee json.RawMessage `json:"Attendee"`
}

// Validate reports ErrInvalidConnectionData unless both structures are present.
func (c ConnectionData) Validate() error {
	if !present(c.Meeting) || !present(c.Attendee) {
		return ErrInvalidConnectionData
	}
	return nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Setup produces connection data for a caller.
type Setup interface {
	Setup(ctx context.Context, attrs Attributes) (ConnectionData, error)
}

// SetupError carries a failure message reported by the setup endpoint.
type SetupError struct {
	Message string
}

func (e *SetupError) Error() string { return e.Message }
