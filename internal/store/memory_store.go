package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/sharkchat/internal/domain"
)

// MemoryStore is an in-process ConversationStore. Data is lost on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	convs  map[string]*domain.Session
	calls  []domain.CallAttempt
	nextID int64
	now    func() time.Time
}

var _ ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs: make(map[string]*domain.Session),
		now:   time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, sess domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = m.now()
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	sess.Messages = nil
	m.convs[sess.ID] = &sess
	return nil
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, msgs ...domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.convs[sessionID]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	for _, msg := range msgs {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		sess.Messages = append(sess.Messages, msg)
	}
	sess.UpdatedAt = now
	return nil
}

func (m *MemoryStore) SaveState(_ context.Context, sessionID string, state domain.State, sc domain.SessionContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.convs[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.State = state
	sess.Context = sc
	sess.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) End(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.convs[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.ClosedAt == nil {
		sess.ClosedAt = &at
	}
	sess.UpdatedAt = at
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.convs[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	cp.Messages = append([]domain.Message(nil), sess.Messages...)
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]domain.Session, error) {
	m.mu.RLock()
	out := make([]domain.Session, 0, len(m.convs))
	for _, sess := range m.convs {
		cp := *sess
		cp.Messages = nil
		out = append(out, cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) StartCall(_ context.Context, sessionID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs[sessionID]; !ok {
		return 0, ErrNotFound
	}
	m.nextID++
	m.calls = append(m.calls, domain.CallAttempt{
		ID:        m.nextID,
		SessionID: sessionID,
		Status:    domain.CallConnecting,
		StartedAt: at,
	})
	return m.nextID, nil
}

func (m *MemoryStore) FinishCall(_ context.Context, callID int64, status domain.CallStatus, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.calls {
		if m.calls[i].ID != callID {
			continue
		}
		m.calls[i].Status = status
		m.calls[i].Reason = reason
		if !status.Active() {
			m.calls[i].EndedAt = &at
		}
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) Calls(_ context.Context, sessionID string) ([]domain.CallAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.CallAttempt
	for _, c := range m.calls {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) Prune(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, sess := range m.convs {
		if sess.UpdatedAt.Before(before) {
			delete(m.convs, id)
			n++
		}
	}
	kept := m.calls[:0]
	for _, c := range m.calls {
		if _, ok := m.convs[c.SessionID]; ok {
			kept = append(kept, c)
		}
	}
	m.calls = kept
	return n, nil
}
