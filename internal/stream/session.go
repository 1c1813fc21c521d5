// Package stream implements the per-connection live update session.
//
// A Session increments the shared active count when it opens, pushes the
// current value to its client at once, then polls the count on a fixed
// interval and pushes only when the value differs from the last one it sent.
// Closing a session stops the polling and decrements the count exactly once,
// no matter how many times or from how many goroutines Close is called.
//
// Sessions never notify each other. Every session reads the shared counter
// on its own schedule, so a client may see a value that is stale by at most
// one poll interval.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPollInterval is how often a streaming session re-reads the counter.
const DefaultPollInterval = 300 * time.Millisecond

// Counter is the shared active-visitor count a session reports on.
type Counter interface {
	IncrementActive()
	DecrementActive() bool
	CurrentActive() int64
}

// Emitter delivers one update to the client. Implementations must not block:
// an emitter that cannot accept the value right away returns an error, and
// the session closes.
type Emitter interface {
	Emit(value int64) error
}

// EmitterFunc adapts a plain function to Emitter.
type EmitterFunc func(value int64) error

func (f EmitterFunc) Emit(value int64) error { return f(value) }

// Options tune a single session.
type Options struct {
	// Transport labels the session for logs and metrics ("sse", "ws").
	Transport string

	// PollInterval defaults to DefaultPollInterval when zero.
	PollInterval time.Duration

	// OnEmit runs after every successful emit, with the session lock held.
	OnEmit func(s *Session, value int64)

	// OnClose runs once, after the session reached StateClosed and the counter
	// was decremented.
	OnClose func(s *Session)
}

// Session is one subscriber's live update stream.
type Session struct {
	ID        string
	Transport string

	counter  Counter
	out      Emitter
	interval time.Duration
	onEmit   func(*Session, int64)
	onClose  func(*Session)

	mu       sync.Mutex
	state    State
	last     int64
	emitted  int
	openedAt time.Time
	closedAt time.Time
	done     chan struct{}
}

// Info is a read-only view of a session, safe to retain.
type Info struct {
	ID           string    `json:"id"`
	Transport    string    `json:"transport"`
	State        State     `json:"state"`
	LastObserved int64     `json:"lastObserved"`
	Emitted      int       `json:"emitted"`
	OpenedAt     time.Time `json:"openedAt"`
}

// Open starts a session: it increments the counter, captures the current
// value and emits it immediately. On success the session is StateStreaming and
// the caller should start Run. If the first emit fails the session is closed
// again (one decrement) and the error is returned.
func Open(counter Counter, out Emitter, opts Options) (*Session, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := &Session{
		ID:        uuid.NewString(),
		Transport: opts.Transport,
		counter:   counter,
		out:       out,
		interval:  interval,
		onEmit:    opts.OnEmit,
		onClose:   opts.OnClose,
		state:     StateOpen,
		openedAt:  time.Now(),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.counter.IncrementActive()
	s.last = s.counter.CurrentActive()
	err := s.emitLocked(s.last)
	if err == nil {
		s.state = StateStreaming
	}
	s.mu.Unlock()

	if err != nil {
		s.Close()
		return nil, fmt.Errorf("initial emit: %w", err)
	}
	return s, nil
}

// Tick performs one poll. It emits only when the counter moved since the
// last emitted value and reports whether it did. A closed session never
// emits.
func (s *Session) Tick() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return false, nil
	}
	cur := s.counter.CurrentActive()
	if cur == s.last {
		return false, nil
	}
	if err := s.emitLocked(cur); err != nil {
		return false, err
	}
	s.last = cur
	return true, nil
}

// emitLocked pushes value to the client. Caller must hold s.mu.
func (s *Session) emitLocked(value int64) error {
	if err := s.out.Emit(value); err != nil {
		return err
	}
	s.emitted++
	if s.onEmit != nil {
		s.onEmit(s, value)
	}
	return nil
}

// Run polls the counter every PollInterval until ctx is cancelled, the
// session is closed, or an emit fails. The session is always closed when Run
// returns. Only an emit failure is reported as an error.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case <-ticker.C:
			if _, err := s.Tick(); err != nil {
				return fmt.Errorf("session %s: %w", s.ID, err)
			}
		}
	}
}

// Close tears the session down. The first call moves it to StateClosed,
// decrements the counter and fires OnClose; it returns true. Every later
// call is a no-op returning false.
func (s *Session) Close() bool {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.state = StateClosed
	s.closedAt = time.Now()
	close(s.done)
	s.counter.DecrementActive()
	hook := s.onClose
	s.mu.Unlock()

	if hook != nil {
		hook(s)
	}
	return true
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastObserved returns the value most recently pushed to the client.
func (s *Session) LastObserved() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Duration is how long the session has been (or was) open.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return s.closedAt.Sub(s.openedAt)
	}
	return time.Since(s.openedAt)
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.ID,
		Transport:    s.Transport,
		State:        s.state,
		LastObserved: s.last,
		Emitted:      s.emitted,
		OpenedAt:     s.openedAt,
	}
}
