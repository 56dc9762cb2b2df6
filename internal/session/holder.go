package session

import (
	"context"
	"sync"
	"sync/atomic"

	"chat-room/internal/logging"
)

// AuthSource is the upstream identity provider.
type AuthSource interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(cb func(Event)) (unsubscribe func())
}

// Holder tracks the current session of one client. Every auth event replaces the
// held session as a whole.
type Holder struct {
	src     AuthSource
	current atomic.Pointer[Session]

	mu          sync.Mutex
	listeners   map[int]func(*Session)
	nextID      int
	events      int
	unsubscribe func()
	closed      bool
}

// NewHolder creates a holder for src. Call Start to populate it.
func NewHolder(src AuthSource) *Holder {
	return &Holder{src: src, listeners: make(map[int]func(*Session))}
}

// Start subscribes to auth events and fetches the initial session. A failed
// fetch leaves the session nil.
func (h *Holder) Start(ctx context.Context) {
	h.mu.Lock()
	if h.closed || h.unsubscribe != nil {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	unsubscribe := h.src.OnAuthStateChange(func(evt Event) {
		h.apply(evt.Session, true)
	})

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		unsubscribe()
		return
	}
	h.unsubscribe = unsubscribe
	h.mu.Unlock()

	sess, err := h.src.GetSession(ctx)
	if err != nil {
		log := logging.Ctx(ctx)
		log.Warn().Err(err).Msg("initial session fetch failed")
		return
	}
	h.apply(sess, false)
}

func (h *Holder) apply(sess *Session, fromEvent bool) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if fromEvent {
		h.events++
	} else if h.events > 0 {
		// an event already superseded the initial fetch
		h.mu.Unlock()
		return
	}
	h.current.Store(sess)
	listeners := make([]func(*Session), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}

// Current returns the held session or nil when signed out.
func (h *Holder) Current() *Session {
	return h.current.Load()
}

// Subscribe calls fn with every new session value until the returned func is called.
func (h *Holder) Subscribe(fn func(*Session)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Close unsubscribes from the auth source and drops all listeners.
func (h *Holder) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	unsubscribe := h.unsubscribe
	h.unsubscribe = nil
	h.listeners = map[int]func(*Session){}
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
