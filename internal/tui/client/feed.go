package client

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

var errStreamClosed = errors.New("stream closed by server")

// --- Bubble Tea messages ---

// ConnectedMsg is sent when a subscription is established.
type ConnectedMsg struct{ Transport string }

// DisconnectedMsg is sent when the subscription drops. The subscriber keeps
// reconnecting on its own.
type DisconnectedMsg struct{ Err error }

// CountMsg carries one active-visitor value from the stream.
type CountMsg struct{ Active int64 }

// Subscriber delivers the live active count as Bubble Tea messages. Run owns
// the connection and reconnects until ctx ends; Next waits for the next
// message.
type Subscriber interface {
	Run(ctx context.Context)
	Next() tea.Cmd
	Reconnect()
	Transport() string
}

// feed is the channel shared by a subscriber's connection goroutine and the
// Bubble Tea program.
type feed struct {
	msgs chan tea.Msg
	kick chan struct{}
}

func newFeed() feed {
	return feed{
		msgs: make(chan tea.Msg, 64),
		kick: make(chan struct{}, 1),
	}
}

func (f feed) Next() tea.Cmd {
	return func() tea.Msg {
		return <-f.msgs
	}
}

// Reconnect drops the current connection; Run dials again right away.
func (f feed) Reconnect() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

func (f feed) push(ctx context.Context, msg tea.Msg) {
	select {
	case f.msgs <- msg:
	case <-ctx.Done():
	}
}

// watchKick calls cancel on Reconnect, or returns once ctx ends.
func (f feed) watchKick(ctx context.Context, cancel context.CancelFunc) {
	select {
	case <-f.kick:
		cancel()
	case <-ctx.Done():
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextDelay(d time.Duration) time.Duration {
	return min(d*2, reconnectMaxDelay)
}

func parseCount(data []byte) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}
