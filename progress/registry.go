package progress

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// Token is the cancellation flag of one conversion. The dispatcher polls
// Cancelled at stage boundaries; the context handle is only used for
// shutdown.
type Token struct {
	id        string
	cancelled atomic.Bool
	stop      context.CancelFunc
}

// ID returns the conversion id the token belongs to.
func (t *Token) ID() string { return t.id }

// Cancelled reports whether cancellation was requested.
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Registry maps running conversion ids to their tokens. Entries exist from
// submission until the terminal result.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Register adds id and returns its token. stop may be nil. Registering an
// id twice returns the existing token.
func (r *Registry) Register(id string, stop context.CancelFunc) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[id]; ok {
		return t
	}
	t := &Token{id: id, stop: stop}
	r.tokens[id] = t
	return t
}

// Cancel flags id for cancellation. It reports whether a running conversion
// was registered under id; repeating the call is harmless.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	t, ok := r.tokens[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	t.cancelled.Store(true)
	return true
}

// IsCancelled reports whether id is registered and flagged.
func (r *Registry) IsCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	return ok && t.Cancelled()
}

// Finish releases the entry of id. Its context handle is released too.
func (r *Registry) Finish(id string) {
	r.mu.Lock()
	t, ok := r.tokens[id]
	delete(r.tokens, id)
	r.mu.Unlock()
	if ok && t.stop != nil {
		t.stop()
	}
}

// Active lists the registered ids in sorted order.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tokens))
	for id := range r.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CancelAll flags every registered conversion and cancels its context, so
// in-flight external calls return early. Used on shutdown.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	tokens := make([]*Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		tokens = append(tokens, t)
	}
	r.mu.Unlock()
	for _, t := range tokens {
		t.cancelled.Store(true)
		if t.stop != nil {
			t.stop()
		}
	}
	return len(tokens)
}
