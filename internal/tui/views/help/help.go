// Package help renders the watcher's help overlay from Markdown.
package help

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/livevisitors/backend/internal/tui/theme"
)

const doc = `# Live visitor watcher

Shows how many browsers currently hold the counter's live stream open.

## Keys

| Key | Action |
|-----|--------|
| ` + "`q` / `ctrl+c`" + ` | quit |
| ` + "`?`" + ` | toggle this help |
| ` + "`r`" + ` | drop the connection and reconnect |

## Transports

- **SSE** follows ` + "`/sse`" + `, one ` + "`data: <n>`" + ` event per change.
- **WS** follows ` + "`/ws`" + `, JSON frames of type ` + "`active`" + `.

The number eases toward each new value; the status bar polls
` + "`/api/status`" + ` for totals, uptime and open streams.
`

// Model caches the rendered overlay per width.
type Model struct {
	Style string // glamour standard style, e.g. "dark", "light", "notty"

	width    int
	rendered string
	err      error
}

func New(style string) Model {
	if style == "" {
		style = "dark"
	}
	return Model{Style: style}
}

// SetWidth re-renders the document when the terminal width changes.
func (m *Model) SetWidth(width int) {
	if width == m.width && m.rendered != "" {
		return
	}
	m.width = width
	m.rendered, m.err = render(m.Style, width)
}

func render(style string, width int) (string, error) {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return "", err
	}
	return r.Render(doc)
}

func (m Model) View() string {
	if m.rendered == "" {
		m.rendered, m.err = render(m.Style, m.width)
	}
	if m.err != nil {
		// Fall back to the raw Markdown.
		return theme.StyleBorder.Padding(0, 1).Render(strings.TrimSpace(doc))
	}
	return strings.TrimRight(m.rendered, "\n")
}
