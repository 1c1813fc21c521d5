package client

import (
	"encoding/json"
	"time"
)

// MessageType identifies a WebSocket frame.
type MessageType string

const (
	MsgActive MessageType = "active"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ActivePayload struct {
	Active int64 `json:"active"`
}

// SessionInfo describes one live stream on the server.
type SessionInfo struct {
	ID           string    `json:"id"`
	Transport    string    `json:"transport"`
	State        string    `json:"state"`
	LastObserved int64     `json:"lastObserved"`
	Emitted      int       `json:"emitted"`
	OpenedAt     time.Time `json:"openedAt"`
}

type ProcessStats struct {
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
	OpenFDs    int32   `json:"openFds"`
}

// Status is the /api/status response.
type Status struct {
	Active        int64         `json:"active"`
	Total         int64         `json:"total"`
	Since         time.Time     `json:"since"`
	UptimeSeconds float64       `json:"uptimeSeconds"`
	Sessions      []SessionInfo `json:"sessions"`
	Process       ProcessStats  `json:"process"`
}

// Uptime returns the server uptime as a duration.
func (s Status) Uptime() time.Duration {
	return time.Duration(s.UptimeSeconds * float64(time.Second))
}
