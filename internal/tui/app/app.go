package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/livevisitors/backend/internal/tui/client"
	"github.com/livevisitors/backend/internal/tui/theme"
	"github.com/livevisitors/backend/internal/tui/views/counter"
	helpview "github.com/livevisitors/backend/internal/tui/views/help"
	"github.com/livevisitors/backend/internal/tui/views/status"
)

const statusInterval = 2 * time.Second

type statusTickMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	sub    client.Subscriber
	http   *client.HTTPClient
	target string
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Sub-views.
	spinner   spinner.Model
	counter   counter.Model
	statusBar status.Model
	helpBar   help.Model
	helpView  helpview.Model
	showHelp  bool

	// Connection state.
	connected bool
	lastErr   error
}

// New creates the root model. http may be nil to skip status polling.
func New(sub client.Subscriber, http *client.HTTPClient, target string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	transport := ""
	if sub != nil {
		transport = sub.Transport()
	}
	return Model{
		sub:    sub,
		http:   http,
		target: target,
		ctx:    ctx,
		cancel: cancel,
		keys:   DefaultKeyMap(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.ColorWarning)),
		),
		counter:   counter.New(),
		statusBar: status.New(transport),
		helpBar:   help.New(),
		helpView:  helpview.New("dark"),
	}
}

// Init starts the subscription, the spinner and status polling.
func (m Model) Init() tea.Cmd {
	sub, ctx := m.sub, m.ctx
	run := func() tea.Msg {
		go sub.Run(ctx)
		return nil
	}
	return tea.Batch(run, m.sub.Next(), m.spinner.Tick, m.pollStatus())
}

func (m Model) pollStatus() tea.Cmd {
	if m.http == nil {
		return nil
	}
	return m.http.FetchStatus(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.counter.Width = msg.Width
		m.helpBar.Width = msg.Width
		m.helpView.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.connected {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case client.ConnectedMsg:
		m.connected = true
		m.lastErr = nil
		m.statusBar.Connected = true
		return m, m.sub.Next()

	case client.DisconnectedMsg:
		m.connected = false
		m.lastErr = msg.Err
		m.statusBar.Connected = false
		return m, tea.Batch(m.sub.Next(), m.spinner.Tick)

	case client.CountMsg:
		frame := m.counter.SetTarget(msg.Active)
		return m, tea.Batch(m.sub.Next(), frame)

	case counter.FrameMsg:
		var cmd tea.Cmd
		m.counter, cmd = m.counter.Update(msg)
		return m, cmd

	case client.StatusMsg:
		m.statusBar.SetStatus(msg.Status, msg.Err)
		return m, tea.Tick(statusInterval, func(time.Time) tea.Msg { return statusTickMsg{} })

	case statusTickMsg:
		return m, m.pollStatus()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		m.sub.Reconnect()
		return m, nil
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.statusBar.View(),
		m.body(),
		"  " + m.helpBar.View(m.keys),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) body() string {
	if m.showHelp {
		return m.helpView.View()
	}

	if m.counter.Updates() == 0 {
		line := m.spinner.View() + " Connecting to " + m.target + "..."
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, "\n"+line+"\n")
	}

	lines := []string{m.counter.View()}
	if !m.connected {
		warn := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED")
		detail := m.spinner.View() + " Reconnecting..."
		if m.lastErr != nil {
			detail += theme.StyleDimmed.Render("  (" + m.lastErr.Error() + ")")
		}
		lines = append(lines, lipgloss.PlaceHorizontal(m.width, lipgloss.Center, warn+"  "+detail))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
