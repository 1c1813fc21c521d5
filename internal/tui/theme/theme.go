// Package theme provides the Lip Gloss color palette and reusable styles
// for the visitor watcher. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Count colors by crowd size.
var (
	ColorEmpty = lipgloss.Color("#4b5563")
	ColorFew   = lipgloss.Color("#22c55e")
	ColorSome  = lipgloss.Color("#06b6d4")
	ColorBusy  = lipgloss.Color("#d97706")
	ColorCrowd = lipgloss.Color("#a855f7")
)

// Transport badge colors.
var (
	ColorSSE  = lipgloss.Color("#3b82f6")
	ColorWS   = lipgloss.Color("#10b981")
	ColorMock = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// CountColor returns the color for an active-visitor count.
func CountColor(n int64) lipgloss.Color {
	switch {
	case n <= 0:
		return ColorEmpty
	case n < 5:
		return ColorFew
	case n < 20:
		return ColorSome
	case n < 100:
		return ColorBusy
	default:
		return ColorCrowd
	}
}

// TransportBadge returns a colored badge string for a stream transport.
func TransportBadge(transport string) string {
	switch transport {
	case "sse":
		return lipgloss.NewStyle().Foreground(ColorSSE).Render("[SSE]")
	case "ws":
		return lipgloss.NewStyle().Foreground(ColorWS).Render("[WS]")
	case "mock":
		return lipgloss.NewStyle().Foreground(ColorMock).Render("[MOCK]")
	default:
		return lipgloss.NewStyle().Foreground(ColorDefault).Render("[?]")
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)
)
