package store

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/sharkchat/internal/domain"
)

// ErrNotFound is returned when a conversation or call attempt does not exist.
var ErrNotFound = errors.New("store: not found")

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02 15:04:05.000"

// ConversationStore persists conversations, their append-only transcripts and
// their call attempts.
type ConversationStore interface {
	// Create records a new conversation. Messages on sess are ignored.
	Create(ctx context.Context, sess domain.Session) error
	// Append adds messages to the end of a conversation's transcript.
	Append(ctx context.Context, sessionID string, msgs ...domain.Message) error
	// SaveState records the conversation's current state and context.
	SaveState(ctx context.Context, sessionID string, state domain.State, sc domain.SessionContext) error
	// End marks a conversation closed.
	End(ctx context.Context, sessionID string, at time.Time) error
	// Get returns a conversation with its full transcript.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	// List returns conversations, most recently updated first, without transcripts.
	List(ctx context.Context, limit int) ([]domain.Session, error)
	// StartCall records a new call attempt in the connecting state.
	StartCall(ctx context.Context, sessionID string, at time.Time) (int64, error)
	// FinishCall records the terminal status of a call attempt.
	FinishCall(ctx context.Context, callID int64, status domain.CallStatus, reason string, at time.Time) error
	// Calls returns every call attempt of a conversation in start order.
	Calls(ctx context.Context, sessionID string) ([]domain.CallAttempt, error)
	// Prune deletes conversations last updated before the cutoff and
	// returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.ParseInLocation(timeFormat, s, time.UTC)
	return t
}
