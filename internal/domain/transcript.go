package domain

import (
	"sync"
	"time"
)

// Transcript is the append-only, order-preserving message log of one
// conversation. It is safe for concurrent use.
type Transcript struct {
	mu   sync.RWMutex
	msgs []Message
	now  func() time.Time
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// Append adds messages to the end of the log, stamping any without a
// timestamp, and returns the stored copies.
func (t *Transcript) Append(msgs ...Message) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = t.now()
		}
		t.msgs = append(t.msgs, m)
		stored = append(stored, m)
	}
	return stored
}

// Messages returns a copy of the log.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages in the log.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}
