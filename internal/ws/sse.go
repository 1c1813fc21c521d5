package ws

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/livevisitors/backend/internal/stream"
)

// ErrQueueFull is returned by an emitter whose client is not draining its
// send queue fast enough. The session closes and the client reconnects.
var ErrQueueFull = errors.New("client send queue full")

// sseClient queues Server-Sent Events for one HTTP response. The handler
// goroutine drains the queue; Emit never blocks.
type sseClient struct {
	send chan []byte
}

func newSSEClient(buffer int) *sseClient {
	return &sseClient{send: make(chan []byte, buffer)}
}

func (c *sseClient) Emit(value int64) error {
	select {
	case c.send <- formatEvent(value):
		return nil
	default:
		return ErrQueueFull
	}
}

// formatEvent encodes value as a single unnamed SSE event: "data: <n>\n\n".
func formatEvent(value int64) []byte {
	b := make([]byte, 0, 32)
	b = append(b, "data: "...)
	b = strconv.AppendInt(b, value, 10)
	return append(b, '\n', '\n')
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := newSSEClient(s.cfg.Stream.SendBuffer)
	sess, err := s.subscribe(c, "sse")
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.Log.Printf("SSE client connected: %s session=%s", r.RemoteAddr, sess.ID)
	defer s.Log.Printf("SSE client disconnected: %s session=%s", r.RemoteAddr, sess.ID)

	ctx := r.Context()
	go func() {
		if err := sess.Run(ctx); err != nil {
			s.Log.Printf("sse stream error: %v", err)
		}
	}()

	for {
		select {
		case msg := <-c.send:
			if _, err := w.Write(msg); err != nil {
				sess.Close()
				return
			}
			flusher.Flush()
		case <-sess.Done():
			return
		case <-ctx.Done():
			sess.Close()
			return
		}
	}
}

// subscribe opens a session on the hub and records it in metrics. The
// returned error is safe to show to the client.
func (s *Server) subscribe(out stream.Emitter, transport string) (*stream.Session, error) {
	sess, err := s.hub.Subscribe(out, transport)
	switch {
	case errors.Is(err, stream.ErrTooManyConnections):
		s.metrics.SessionRejected(transport)
		s.Log.Printf("%s subscription rejected: %v", transport, err)
		return nil, err
	case errors.Is(err, stream.ErrHubClosed):
		return nil, errors.New("server shutting down")
	case err != nil:
		s.Log.Printf("%s subscription failed: %v", transport, err)
		return nil, errors.New("stream unavailable")
	}
	s.metrics.SessionOpened(transport)
	return sess, nil
}
