package client

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient follows the /ws mirror of the stream.
type WSClient struct {
	feed
	url    string
	dialer *websocket.Dialer
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url string) *WSClient {
	return &WSClient{feed: newFeed(), url: url, dialer: websocket.DefaultDialer}
}

func (c *WSClient) Transport() string { return "ws" }

// Run dials, reads until the connection drops, and dials again with
// exponential backoff until ctx ends.
func (c *WSClient) Run(ctx context.Context) {
	delay := reconnectBaseDelay
	for ctx.Err() == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ws dial error: %v (retry in %v)", err, delay)
			c.push(ctx, DisconnectedMsg{Err: err})
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		delay = reconnectBaseDelay
		c.push(ctx, ConnectedMsg{Transport: c.Transport()})
		err = c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.push(ctx, DisconnectedMsg{Err: err})
	}
}

// readLoop forwards count frames until the connection fails, ctx ends or
// Reconnect is called. The connection is closed on return.
func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		c.watchKick(connCtx, cancel)
		<-connCtx.Done()
		conn.Close()
	}()
	go pingLoop(connCtx, conn)

	extend := func() { conn.SetReadDeadline(time.Now().Add(pongTimeout)) }
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	extend()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		extend()

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != MsgActive {
			continue
		}
		var p ActivePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			continue
		}
		c.push(connCtx, CountMsg{Active: p.Active})
	}
}

// pingLoop sends periodic pings on conn until ctx is cancelled or a write
// fails.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
