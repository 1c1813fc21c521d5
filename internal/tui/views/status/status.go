package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/livevisitors/backend/internal/tui/client"
	"github.com/livevisitors/backend/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Transport string
	Status    *client.Status
	Err       error
	Width     int
}

// New creates a status bar model.
func New(transport string) Model {
	return Model{Transport: transport}
}

// SetStatus records the latest /api/status poll.
func (m *Model) SetStatus(s *client.Status, err error) {
	m.Err = err
	if err == nil {
		m.Status = s
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	parts := []string{connStr + " " + theme.TransportBadge(m.Transport)}
	if m.Status != nil {
		parts = append(parts,
			fmt.Sprintf("%d total", m.Status.Total),
			"up "+formatUptime(m.Status.Uptime()),
		)
		if streams := streamCounts(m.Status.Sessions); streams != "" {
			parts = append(parts, streams)
		}
		if rss := m.Status.Process.RSSBytes; rss > 0 {
			parts = append(parts, fmt.Sprintf("%.1f MiB", float64(rss)/(1<<20)))
		}
	}
	if m.Err != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("status unavailable"))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := strings.Join(parts, sep)

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}

// streamCounts summarizes open sessions per transport, e.g. "2 sse  1 ws".
func streamCounts(sessions []client.SessionInfo) string {
	counts := make(map[string]int)
	for _, s := range sessions {
		counts[s.Transport]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%d %s", counts[k], k))
	}
	return strings.Join(out, "  ")
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
