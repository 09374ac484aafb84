package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soyeahso/sharkchat/internal/domain"
	"github.com/soyeahso/sharkchat/internal/logging"
	"github.com/soyeahso/sharkchat/internal/store"
)

// idleSweepSchedule is how often idle conversations are expired.
const idleSweepSchedule = "@every 1m"

// RegistryOptions configure conversation lifetime.
type RegistryOptions struct {
	Conversation Options
	// IdleTimeout ends conversations without user activity; zero disables.
	IdleTimeout time.Duration
	// Retention is how long ended conversations are kept in the store;
	// zero disables pruning.
	Retention time.Duration
}

// Summary describes a live conversation.
type Summary struct {
	ID         string            `json:"id"`
	Key        string            `json:"key"`
	State      domain.State      `json:"state"`
	CallStatus domain.CallStatus `json:"callStatus"`
	Messages   int               `json:"messages"`
	LastActive time.Time         `json:"lastActive"`
}

// Stats are registry counters.
type Stats struct {
	Active int `json:"active"`
	Calls  int `json:"calls"`
}

// Registry tracks live conversations by session key.
type Registry struct {
	deps    Deps
	opts    RegistryOptions
	rootLog *logging.Logger
	log     *logging.Logger

	mu    sync.RWMutex
	byKey map[string]*Conversation
	byID  map[string]*Conversation

	cron *cron.Cron
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps, opts RegistryOptions, log *logging.Logger) *Registry {
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}
	if opts.Conversation.Now == nil {
		opts.Conversation.Now = time.Now
	}
	return &Registry{
		deps:    deps,
		opts:    opts,
		rootLog: log,
		log:     log.Sub("registry"),
		byKey:   make(map[string]*Conversation),
		byID:    make(map[string]*Conversation),
	}
}

// Store returns the registry's conversation store.
func (r *Registry) Store() store.ConversationStore { return r.deps.Store }

// Open returns the live conversation for key, or opens a new one attached
// to shell when there is none or the previous one has ended. created
// reports whether a new conversation was opened.
func (r *Registry) Open(ctx context.Context, key domain.SessionKey, shell Shell) (conv *Conversation, created bool, err error) {
	k := key.String()

	r.mu.Lock()
	if existing, ok := r.byKey[k]; ok && !existing.Closed() {
		r.mu.Unlock()
		return existing, false, nil
	}
	conv = New(key, r.deps, shell, r.opts.Conversation, r.rootLog)
	if old, ok := r.byKey[k]; ok {
		delete(r.byID, old.ID())
	}
	r.byKey[k] = conv
	r.byID[conv.ID()] = conv
	r.mu.Unlock()

	if err := conv.Open(ctx); err != nil {
		r.remove(conv)
		return nil, false, fmt.Errorf("opening conversation: %w", err)
	}
	return conv, true, nil
}

// Get returns the conversation for key, if live.
func (r *Registry) Get(key domain.SessionKey) (*Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[key.String()]
	return c, ok
}

// ByID returns the conversation with the given session ID, if live.
func (r *Registry) ByID(id string) (*Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// End ends and forgets the conversation for key.
func (r *Registry) End(ctx context.Context, key domain.SessionKey) bool {
	c, ok := r.Get(key)
	if !ok {
		return false
	}
	r.remove(c)
	c.End(ctx)
	return true
}

func (r *Registry) remove(c *Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := c.Key().String()
	if r.byKey[k] == c {
		delete(r.byKey, k)
	}
	delete(r.byID, c.ID())
}

func (r *Registry) snapshot() []*Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conversation, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// List summarizes live conversations, most recently active first.
func (r *Registry) List() []Summary {
	convs := r.snapshot()
	out := make([]Summary, 0, len(convs))
	for _, c := range convs {
		out = append(out, Summary{
			ID:         c.ID(),
			Key:        c.Key().String(),
			State:      c.State(),
			CallStatus: c.CallStatusNow(),
			Messages:   len(c.Messages()),
			LastActive: c.LastActive(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

// Stats returns live counters.
func (r *Registry) Stats() Stats {
	var s Stats
	for _, c := range r.snapshot() {
		s.Active++
		if c.CallStatusNow().Active() {
			s.Calls++
		}
	}
	return s
}

// ExpireIdle ends conversations idle past the idle timeout and drops ended
// ones. Conversations on a live call are kept. It returns how many were
// removed.
func (r *Registry) ExpireIdle(ctx context.Context) int {
	now := r.opts.Conversation.Now()
	removed := 0
	for _, c := range r.snapshot() {
		switch {
		case c.Closed():
		case r.opts.IdleTimeout > 0 &&
			now.Sub(c.LastActive()) > r.opts.IdleTimeout &&
			!c.CallStatusNow().Active():
			c.End(ctx)
		default:
			continue
		}
		r.remove(c)
		removed++
	}
	if removed > 0 {
		r.log.Info().Int("removed", removed).Msg("expired conversations")
	}
	return removed
}

// Prune deletes stored conversations older than the retention window.
func (r *Registry) Prune(ctx context.Context) (int, error) {
	if r.opts.Retention <= 0 {
		return 0, nil
	}
	cutoff := r.opts.Conversation.Now().Add(-r.opts.Retention)
	n, err := r.deps.Store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning conversations: %w", err)
	}
	if n > 0 {
		r.log.Info().Int("pruned", n).Time("before", cutoff).Msg("pruned stored conversations")
	}
	return n, nil
}

// StartJanitor schedules idle expiry every minute and store pruning on
// pruneSchedule (standard five-field cron). An empty schedule disables
// pruning.
func (r *Registry) StartJanitor(pruneSchedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(idleSweepSchedule, func() {
		r.ExpireIdle(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling idle sweep: %w", err)
	}
	if pruneSchedule != "" {
		if _, err := c.AddFunc(pruneSchedule, func() {
			if _, err := r.Prune(context.Background()); err != nil {
				r.log.Warn().Err(err).Msg("prune failed")
			}
		}); err != nil {
			return fmt.Errorf("scheduling prune %q: %w", pruneSchedule, err)
		}
	}
	c.Start()

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()
	r.log.Debug().Str("prune", pruneSchedule).Msg("janitor started")
	return nil
}

// Close stops the janitor and ends every live conversation.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	for _, conv := range r.snapshot() {
		r.remove(conv)
		conv.End(ctx)
	}
}
