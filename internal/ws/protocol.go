package ws

import (
	"time"

	"github.com/livevisitors/backend/internal/stream"
)

type MessageType string

const (
	MsgActive MessageType = "active"
)

// WSMessage is the envelope of every WebSocket text frame.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type ActivePayload struct {
	Active int64 `json:"active"`
}

// StatusPayload is served by /api/status.
type StatusPayload struct {
	Active        int64         `json:"active"`
	Total         int64         `json:"total"`
	Since         time.Time     `json:"since"`
	UptimeSeconds float64       `json:"uptimeSeconds"`
	Sessions      []stream.Info `json:"sessions"`
	Process       ProcessStats  `json:"process"`
}

type ProcessStats struct {
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Goroutines int     `json:"goroutines"`
	OpenFDs    int32   `json:"openFds"`
}
