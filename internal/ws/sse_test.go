package ws

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/livevisitors/backend/internal/config"
)

// sseConn is the client side of one /sse subscription.
type sseConn struct {
	resp   *http.Response
	br     *bufio.Reader
	cancel context.CancelFunc
}

func openSSE(t *testing.T, baseURL string) *sseConn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/sse", nil)
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("GET /sse: %v", err)
	}
	return &sseConn{resp: resp, br: bufio.NewReader(resp.Body), cancel: cancel}
}

// next reads one event and returns its data line, e.g. "data: 2".
func (c *sseConn) next(t *testing.T) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		var data string
		for {
			line, err := c.br.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			line = strings.TrimSuffix(line, "\n")
			if line == "" {
				ch <- result{line: data}
				return
			}
			data = line
		}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("reading event: %v", res.err)
		}
		return res.line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func (c *sseConn) close() {
	c.cancel()
	c.resp.Body.Close()
}

func TestFormatEvent(t *testing.T) {
	tests := map[int64]string{
		0:    "data: 0\n\n",
		7:    "data: 7\n\n",
		1234: "data: 1234\n\n",
	}
	for v, want := range tests {
		if got := string(formatEvent(v)); got != want {
			t.Errorf("formatEvent(%d) = %q, want %q", v, got, want)
		}
	}
}

func TestSSEClientQueueFull(t *testing.T) {
	c := newSSEClient(1)
	if err := c.Emit(1); err != nil {
		t.Fatalf("first Emit() error: %v", err)
	}
	if err := c.Emit(2); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Emit() = %v, want ErrQueueFull", err)
	}
}

func TestSSEHeadersAndInitialEvent(t *testing.T) {
	s, reg := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	c := openSSE(t, srv.URL)
	defer c.close()

	if c.resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", c.resp.StatusCode)
	}
	want := map[string]string{
		"Content-Type":  "text/event-stream",
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	}
	for k, v := range want {
		if got := c.resp.Header.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}

	if got := c.next(t); got != "data: 1" {
		t.Errorf("first event = %q, want %q", got, "data: 1")
	}
	if got := reg.CurrentActive(); got != 1 {
		t.Errorf("CurrentActive() = %d, want 1", got)
	}

	c.close()
	waitFor(t, "active count back to 0", func() bool { return reg.CurrentActive() == 0 })
	waitFor(t, "hub to forget the session", func() bool { return s.hub.Count() == 0 })
}

func TestSSETwoClientScenario(t *testing.T) {
	s, reg := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	a := openSSE(t, srv.URL)
	defer a.close()
	if got := a.next(t); got != "data: 1" {
		t.Fatalf("A initial = %q, want data: 1", got)
	}

	b := openSSE(t, srv.URL)
	defer b.close()
	if got := b.next(t); got != "data: 2" {
		t.Fatalf("B initial = %q, want data: 2", got)
	}
	if got := a.next(t); got != "data: 2" {
		t.Fatalf("A after B joined = %q, want data: 2", got)
	}

	a.close()
	waitFor(t, "active count 1", func() bool { return reg.CurrentActive() == 1 })
	if got := b.next(t); got != "data: 1" {
		t.Fatalf("B after A left = %q, want data: 1", got)
	}

	b.close()
	waitFor(t, "active count 0", func() bool { return reg.CurrentActive() == 0 })
}

type noFlushWriter struct {
	header http.Header
	code   int
}

func (w *noFlushWriter) Header() http.Header         { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(code int)        { w.code = code }

func TestSSEStreamingUnsupported(t *testing.T) {
	s, reg := newTestServer(t, nil)

	w := &noFlushWriter{header: http.Header{}}
	s.handleSSE(w, httptest.NewRequest(http.MethodGet, "/sse", nil))

	if w.code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.code)
	}
	if got := reg.CurrentActive(); got != 0 {
		t.Errorf("CurrentActive() = %d, want 0", got)
	}
}

func TestSSETooManyConnections(t *testing.T) {
	s, reg := newTestServer(t, func(c *config.Config) { c.Stream.MaxConnections = 1 })
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	a := openSSE(t, srv.URL)
	defer a.close()
	a.next(t)

	resp, err := http.Get(srv.URL + "/sse")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second subscriber status = %d, want 503", resp.StatusCode)
	}
	if got := reg.CurrentActive(); got != 1 {
		t.Errorf("CurrentActive() = %d, want 1", got)
	}
}

func TestServeShutdownClosesStreams(t *testing.T) {
	s, reg := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	c := openSSE(t, "http://"+ln.Addr().String())
	defer c.close()
	if got := c.next(t); got != "data: 1" {
		t.Fatalf("initial event = %q, want data: 1", got)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if got := reg.CurrentActive(); got != 0 {
		t.Errorf("CurrentActive() = %d after shutdown, want 0", got)
	}
	if _, err := c.br.ReadString('\n'); err == nil {
		t.Error("stream should be closed after shutdown")
	}
}
