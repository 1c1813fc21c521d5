package stream

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/livevisitors/backend/internal/visitor"
)

// recorder is an Emitter that keeps every emitted value. Setting fail makes
// the next emits return that error.
type recorder struct {
	mu     sync.Mutex
	values []int64
	fail   error
}

func (r *recorder) Emit(v int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.values = append(r.values, v)
	return nil
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *recorder) Values() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.values))
	copy(out, r.values)
	return out
}

func assertValues(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOpenEmitsImmediately(t *testing.T) {
	reg := visitor.NewRegistry()
	rec := &recorder{}

	s, err := Open(reg, rec, Options{Transport: "sse"})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	assertValues(t, rec.Values(), 1)
	if got := s.State(); got != StateStreaming {
		t.Errorf("State() = %v, want streaming", got)
	}
	if got := reg.CurrentActive(); got != 1 {
		t.Errorf("CurrentActive() = %d, want 1", got)
	}
	if got := s.LastObserved(); got != 1 {
		t.Errorf("LastObserved() = %d, want 1", got)
	}
	if s.ID == "" {
		t.Error("session ID should be assigned")
	}
}

func TestTickSuppressesUnchangedValue(t *testing.T) {
	reg := visitor.NewRegistry()
	rec := &recorder{}
	s, err := Open(reg, rec, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i := 0; i < 5; i++ {
		emitted, err := s.Tick()
		if err != nil {
			t.Fatalf("Tick() error: %v", err)
		}
		if emitted {
			t.Fatalf("Tick() emitted on unchanged count")
		}
	}
	assertValues(t, rec.Values(), 1)
}

func TestTickEmitsOnChange(t *testing.T) {
	reg := visitor.NewRegistry()
	rec := &recorder{}
	s, err := Open(reg, rec, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	reg.IncrementActive()
	emitted, err := s.Tick()
	if err != nil || !emitted {
		t.Fatalf("Tick() = (%v, %v), want (true, nil)", emitted, err)
	}
	assertValues(t, rec.Values(), 1, 2)
	if got := s.LastObserved(); got != 2 {
		t.Errorf("LastObserved() = %d, want 2", got)
	}

	// A change that reverts before the next tick is invisible.
	reg.IncrementActive()
	reg.DecrementActive()
	if emitted, _ := s.Tick(); emitted {
		t.Error("Tick() emitted although the count is back to the last value")
	}
}

func TestNoConsecutiveDuplicates(t *testing.T) {
	reg := visitor.NewRegistry()
	rec := &recorder{}
	s, err := Open(reg, rec, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		switch rng.Intn(3) {
		case 0:
			reg.IncrementActive()
		case 1:
			reg.DecrementActive()
		}
		if _, err := s.Tick(); err != nil {
			t.Fatalf("Tick() error: %v", err)
		}
	}

	values := rec.Values()
	for i := 1; i < len(values); i++ {
		if values[i] == values[i-1] {
			t.Fatalf("values[%d] and values[%d] are both %d", i-1, i, values[i])
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	reg := visitor.NewRegistry()
	reg.IncrementActive() // someone else is connected
	s, err := Open(reg, &recorder{}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Close() {
				mu.Lock()
				first++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if first != 1 {
		t.Errorf("Close() returned true %d times, want exactly 1", first)
	}
	if got := reg.CurrentActive(); got != 1 {
		t.Errorf("CurrentActive() = %d, want 1 (exactly one decrement)", got)
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done() should be closed after Close")
	}
}

func TestOnCloseRunsOnce(t *testing.T) {
	reg := visitor.NewRegistry()
	calls := 0
	s, err := Open(reg, &recorder{}, Options{OnClose: func(*Session) { calls++ }})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	s.Close()
	if calls != 1 {
		t.Errorf("OnClose ran %d times, want 1", calls)
	}
}

func TestNoEmitAfterClose(t *testing.T) {
	reg := visitor.NewRegistry()
	rec := &recorder{}
	s, err := Open(reg, rec, Options{})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	reg.IncrementActive()
	reg.IncrementActive()
	emitted, err := s.Tick()
	if emitted || err != nil {
		t.Errorf("Tick() after Close = (%v, %v), want (false, nil)", emitted, err)
	}
	assertValues(t, rec.Values(), 1)
}

func TestOpenInitialEmitFailure(t *testing.T) {
	errBoom := errors.New("boom")
	reg := visitor.NewRegistry()
	closed := 0

	s, err := Open(reg, &recorder{fail: errBoom}, Options{OnClose: func(*Session) { closed++ }})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Open() error = %v, want wrapping %v", err, errBoom)
	}
	if s != nil {
		t.Error("Open() should not return a session on failure")
	}
	if got := reg.CurrentActive(); got != 0 {
		t.Errorf("CurrentActive() = %d, want 0 after failed open", got)
	}
	if closed != 1 {
		t.Errorf("OnClose ran %d times, want 1", closed)
	}
}

func TestOnEmitObservesEveryValue(t *testing.T) {
	reg := visitor.NewRegistry()
	var seen []int64
	s, err := Open(reg, &recorder{}, Options{OnEmit: func(_ *Session, v int64) { seen = append(seen, v) }})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	reg.IncrementActive()
	s.Tick()
	s.Tick()
	assertValues(t, seen, 1, 2)
	if got := s.Info().Emitted; got != 2 {
		t.Errorf("Info().Emitted = %d, want 2", got)
	}
}

func TestRunEmitsChanges(t *testing.T) {
	reg := visitor.NewRegistry()
	rec := &recorder{}
	s, err := Open(reg, rec, Options{PollInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	reg.IncrementActive()
	waitFor(t, "second value", func() bool { return len(rec.Values()) == 2 })
	assertValues(t, rec.Values(), 1, 2)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if got := s.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
	if got := reg.CurrentActive(); got != 1 {
		t.Errorf("CurrentActive() = %d, want 1 (only the external increment)", got)
	}
}

func TestRunReturnsWhenClosed(t *testing.T) {
	reg := visitor.NewRegistry()
	s, err := Open(reg, &recorder{}, Options{PollInterval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	s.Close()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Close")
	}
	if got := reg.CurrentActive(); got != 0 {
		t.Errorf("CurrentActive() = %d, want 0", got)
	}
}

func TestRunReturnsEmitError(t *testing.T) {
	errBoom := errors.New("queue full")
	reg := visitor.NewRegistry()
	rec := &recorder{}
	s, err := Open(reg, rec, Options{PollInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	rec.setFail(errBoom)
	reg.IncrementActive()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, errBoom) {
			t.Errorf("Run() = %v, want wrapping %v", err, errBoom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after emit failure")
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
	if got := reg.CurrentActive(); got != 1 {
		t.Errorf("CurrentActive() = %d, want 1", got)
	}
}

func TestConcurrentOpens(t *testing.T) {
	const n = 100
	reg := visitor.NewRegistry()

	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := Open(reg, &recorder{}, Options{})
			if err != nil {
				t.Errorf("Open() error: %v", err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	if got := reg.CurrentActive(); got != n {
		t.Fatalf("CurrentActive() = %d after %d opens", got, n)
	}

	const m = 40
	for _, s := range sessions[:m] {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
	if got := reg.CurrentActive(); got != n-m {
		t.Errorf("CurrentActive() = %d after %d closes, want %d", got, m, n-m)
	}
}

func TestTwoSessionScenario(t *testing.T) {
	reg := visitor.NewRegistry()
	recA, recB := &recorder{}, &recorder{}

	a, err := Open(reg, recA, Options{})
	if err != nil {
		t.Fatal(err)
	}
	assertValues(t, recA.Values(), 1)

	b, err := Open(reg, recB, Options{})
	if err != nil {
		t.Fatal(err)
	}
	assertValues(t, recB.Values(), 2)

	a.Tick()
	assertValues(t, recA.Values(), 1, 2)

	a.Close()
	if got := reg.CurrentActive(); got != 1 {
		t.Fatalf("CurrentActive() after closing A = %d, want 1", got)
	}

	b.Tick()
	assertValues(t, recB.Values(), 2, 1)

	b.Close()
	if got := reg.CurrentActive(); got != 0 {
		t.Errorf("CurrentActive() after closing B = %d, want 0", got)
	}
	assertValues(t, recA.Values(), 1, 2)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateOpen, "open"},
		{StateStreaming, "streaming"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("streaming")); err != nil || s != StateStreaming {
		t.Errorf("UnmarshalText(streaming) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) should fail")
	}
}
