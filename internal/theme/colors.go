package theme

import "github.com/charmbracelet/lipgloss"

// Color palette - dark theme inspired by Catppuccin Mocha
var (
	ColorBase     = lipgloss.Color("#1e1e2e")
	ColorSurface0 = lipgloss.Color("#313244")
	ColorSurface1 = lipgloss.Color("#45475a")
	ColorSurface2 = lipgloss.Color("#585b70")
	ColorOverlay0 = lipgloss.Color("#6c7086")
	ColorText     = lipgloss.Color("#cdd6f4")
	ColorSubtext0 = lipgloss.Color("#a6adc8")
	ColorSubtext1 = lipgloss.Color("#bac2de")

	ColorRed      = lipgloss.Color("#f38ba8")
	ColorGreen    = lipgloss.Color("#a6e3a1")
	ColorYellow   = lipgloss.Color("#f9e2af")
	ColorBlue     = lipgloss.Color("#89b4fa")
	ColorMauve    = lipgloss.Color("#cba6f7")
	ColorTeal     = lipgloss.Color("#94e2d5")
	ColorPeach    = lipgloss.Color("#fab387")
	ColorFlamingo = lipgloss.Color("#f2cdcd")
	ColorLavender = lipgloss.Color("#b4befe")
)

// Sub-agent status indicator styles
var (
	StatusSpawning = lipgloss.NewStyle().Foreground(ColorPeach).SetString("◌ ")
	StatusBusy     = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true).SetString("● ")
	StatusWaiting  = lipgloss.NewStyle().Foreground(ColorTeal).SetString("◍ ")
	StatusDone     = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true).SetString("✓ ")
	StatusError    = lipgloss.NewStyle().Foreground(ColorRed).Bold(true).SetString("✗ ")
	StatusIdle     = lipgloss.NewStyle().Foreground(ColorOverlay0).SetString("○ ")
)

// AgentStatusIndicator returns a styled indicator for a sub-agent status.
func AgentStatusIndicator(status string) string {
	switch status {
	case "working", "thinking", "chatting":
		return StatusBusy.String()
	case "spawning":
		return StatusSpawning.String()
	case "waiting":
		return StatusWaiting.String()
	case "done":
		return StatusDone.String()
	case "error":
		return StatusError.String()
	default:
		return StatusIdle.String()
	}
}

// SessionStatusColor maps a session status to its display color.
func SessionStatusColor(status string) lipgloss.Color {
	switch status {
	case "active":
		return ColorYellow
	case "completed":
		return ColorGreen
	case "cancelled":
		return ColorOverlay0
	case "failed":
		return ColorRed
	default:
		return ColorText
	}
}
