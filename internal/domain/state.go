package domain

import "github.com/google/uuid"

// State is the position of a conversation in the identity / routing flow.
// Exactly one state is active per conversation.
type State string

const (
	StateWelcome               State = "welcome"
	StateExistingCustomerPhone State = "existing_phone"
	StateExistingCustomerZip   State = "existing_zip"
	StateNewCustomerName       State = "new_name"
	StateNewCustomerPhone      State = "new_phone"
	StateConnectedToBackend    State = "connected_backend"
)

// AllStates lists every conversation state.
var AllStates = []State{
	StateWelcome,
	StateExistingCustomerPhone,
	StateExistingCustomerZip,
	StateNewCustomerName,
	StateNewCustomerPhone,
	StateConnectedToBackend,
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// SessionContext holds the fields captured while a conversation runs.
// SessionID is fixed for the lifetime of the conversation.
type SessionContext struct {
	SessionID     string `json:"sessionId"`
	CapturedZip   string `json:"capturedZip,omitempty"`
	CapturedPhone string `json:"capturedPhone,omitempty"`
	CapturedName  string `json:"capturedName,omitempty"`
}

// NewSessionContext returns a context with a freshly generated session ID.
func NewSessionContext() SessionContext {
	return SessionContext{SessionID: NewSessionID()}
}

// NewSessionID generates a conversation session identifier.
func NewSessionID() string {
	return "session-" + uuid.New().String()
}
