// Package counter renders the active-visitor count, easing between values
// with a spring so jumps are visible.
package counter

import (
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/livevisitors/backend/internal/tui/theme"
)

const (
	fps       = 60
	frequency = 6.0
	damping   = 0.5
	settleEps = 0.01
)

// FrameMsg advances the animation by one frame.
type FrameMsg time.Time

// Model is the animated counter.
type Model struct {
	Width int

	target    int64
	pos, vel  float64
	spring    harmonica.Spring
	animating bool
	updates   int
}

// New creates a counter at zero.
func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

// SetTarget points the spring at n. It returns the frame command when the
// animation was idle.
func (m *Model) SetTarget(n int64) tea.Cmd {
	m.target = n
	m.updates++
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// Target is the last value received from the stream.
func (m Model) Target() int64 { return m.target }

// Updates counts values received since start.
func (m Model) Updates() int { return m.updates }

// Animating reports whether frames are still being scheduled.
func (m Model) Animating() bool { return m.animating }

// Displayed is the value currently drawn.
func (m Model) Displayed() int64 { return int64(math.Round(m.pos)) }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok || !m.animating {
		return m, nil
	}

	target := float64(m.target)
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, target)
	if math.Abs(m.pos-target) < settleEps && math.Abs(m.vel) < settleEps {
		m.pos, m.vel = target, 0
		m.animating = false
		return m, nil
	}
	return m, frame()
}

func (m Model) View() string {
	shown := m.Displayed()
	if shown < 0 {
		shown = 0
	}

	number := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.CountColor(m.target)).
		Padding(1, 4).
		Render(fmt.Sprintf("%d", shown))

	label := "active visitors"
	if m.target == 1 {
		label = "active visitor"
	}

	box := theme.StyleBorder.
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Center, number, theme.StyleDimmed.Render(label)))

	if m.Width <= 0 {
		return box
	}
	return lipgloss.PlaceHorizontal(m.Width, lipgloss.Center, box)
}
