package stream

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrTooManyConnections = errors.New("too many connections")
	ErrHubClosed          = errors.New("stream hub closed")
)

// Hub keeps track of every live session so the server can cap concurrent
// subscribers and close them all on shutdown. Sessions remove themselves
// from the hub when they close.
type Hub struct {
	counter  Counter
	defaults Options
	maxConns int // 0 means unlimited

	mu       sync.Mutex
	sessions map[*Session]struct{}
	pending  int
	closed   bool
}

// NewHub creates a hub opening sessions against counter. defaults is copied
// into every session; Subscribe only overrides the transport.
func NewHub(counter Counter, maxConnections int, defaults Options) *Hub {
	return &Hub{
		counter:  counter,
		defaults: defaults,
		maxConns: maxConnections,
		sessions: make(map[*Session]struct{}),
	}
}

// Subscribe opens a session on out and registers it. When the connection cap
// is reached it returns ErrTooManyConnections without touching the counter.
func (h *Hub) Subscribe(out Emitter, transport string) (*Session, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.maxConns > 0 && len(h.sessions)+h.pending >= h.maxConns {
		h.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	h.pending++
	h.mu.Unlock()

	opts := h.defaults
	opts.Transport = transport
	userClose := opts.OnClose
	opts.OnClose = func(s *Session) {
		h.remove(s)
		if userClose != nil {
			userClose(s)
		}
	}

	s, err := Open(h.counter, out, opts)

	h.mu.Lock()
	h.pending--
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	if h.closed {
		h.mu.Unlock()
		s.Close()
		return nil, ErrHubClosed
	}
	if s.State() != StateClosed {
		h.sessions[s] = struct{}{}
	}
	h.mu.Unlock()

	return s, nil
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Sessions returns a snapshot of every registered session, oldest first.
func (h *Hub) Sessions() []Info {
	h.mu.Lock()
	list := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		list = append(list, s)
	}
	h.mu.Unlock()

	infos := make([]Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].OpenedAt.Before(infos[j].OpenedAt)
	})
	return infos
}

// CloseAll closes every registered session and refuses new subscriptions.
// It returns how many sessions it closed.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	h.closed = true
	list := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		list = append(list, s)
	}
	h.mu.Unlock()

	n := 0
	for _, s := range list {
		if s.Close() {
			n++
		}
	}
	return n
}
