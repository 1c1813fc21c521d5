package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livevisitors/backend/internal/stream"
)

// client is one WebSocket subscriber. Emit only queues; writePump owns all
// writes to conn.
type client struct {
	conn         *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	pingInterval time.Duration
}

func newClient(conn *websocket.Conn, buffer int, writeTimeout, pingInterval time.Duration) *client {
	return &client{
		conn:         conn,
		send:         make(chan []byte, buffer),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

func (c *client) Emit(value int64) error {
	data, err := json.Marshal(WSMessage{
		Type:    MsgActive,
		Payload: ActivePayload{Active: value},
	})
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *client) deadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}

// writePump drains the send queue until the session closes or a write fails.
// Either way the session ends up closed and the connection is released.
func (c *client) writePump(sess *stream.Session) {
	var ping <-chan time.Time
	if c.pingInterval > 0 {
		t := time.NewTicker(c.pingInterval)
		defer t.Stop()
		ping = t.C
	}
	defer func() {
		sess.Close()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(c.deadline())
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, c.deadline()); err != nil {
				return
			}
		case <-sess.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed")
			c.conn.WriteControl(websocket.CloseMessage, msg, c.deadline())
			return
		}
	}
}

// readPump discards inbound frames; its only job is noticing the peer going
// away, which closes the session.
func (c *client) readPump(sess *stream.Session) {
	defer sess.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Printf("ws upgrade error: %v", err)
		return
	}

	c := newClient(conn, s.cfg.Stream.SendBuffer, s.cfg.Stream.WSWriteTimeout, s.cfg.Stream.WSPingInterval)
	sess, err := s.subscribe(c, "ws")
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		conn.WriteControl(websocket.CloseMessage, msg, c.deadline())
		conn.Close()
		return
	}

	s.Log.Printf("WebSocket client connected: %s session=%s", r.RemoteAddr, sess.ID)
	go c.writePump(sess)
	go c.readPump(sess)
	go func() {
		if err := sess.Run(context.Background()); err != nil {
			s.Log.Printf("ws stream error: %v", err)
		}
		s.Log.Printf("WebSocket client disconnected: %s session=%s", r.RemoteAddr, sess.ID)
	}()
}
