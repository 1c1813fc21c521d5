package client

import (
	"context"
	"log"

	"github.com/r3labs/sse/v2"
)

// SSEClient follows the /sse endpoint. The r3labs client retries dropped
// streams with its own backoff; Run only starts over when that gives up or
// Reconnect is called.
type SSEClient struct {
	feed
	url string
}

// NewSSEClient creates a subscriber for the given event-stream URL.
func NewSSEClient(url string) *SSEClient {
	return &SSEClient{feed: newFeed(), url: url}
}

func (c *SSEClient) Transport() string { return "sse" }

func (c *SSEClient) Run(ctx context.Context) {
	delay := reconnectBaseDelay
	for ctx.Err() == nil {
		connCtx, cancel := context.WithCancel(ctx)
		go c.watchKick(connCtx, cancel)

		sc := sse.NewClient(c.url)
		sc.OnConnect(func(*sse.Client) {
			c.push(connCtx, ConnectedMsg{Transport: c.Transport()})
		})
		sc.OnDisconnect(func(*sse.Client) {
			c.push(connCtx, DisconnectedMsg{Err: errStreamClosed})
		})

		err := sc.SubscribeRawWithContext(connCtx, func(ev *sse.Event) {
			n, err := parseCount(ev.Data)
			if err != nil {
				log.Printf("sse: ignoring event %q: %v", ev.Data, err)
				return
			}
			c.push(connCtx, CountMsg{Active: n})
		})
		kicked := connCtx.Err() != nil && ctx.Err() == nil
		cancel()

		if ctx.Err() != nil {
			return
		}
		c.push(ctx, DisconnectedMsg{Err: err})
		if kicked {
			delay = reconnectBaseDelay
			continue
		}
		log.Printf("sse subscribe error: %v (retry in %v)", err, delay)
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}
