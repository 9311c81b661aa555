package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/okatz/crewfloor/internal/theme"
)

const rosterPanelWidth = 34

// Tab bar.
var (
	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBase).
			Background(theme.ColorBlue).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(theme.ColorSubtext0).
				Background(theme.ColorSurface0).
				Padding(0, 1)

	tabBarStyle = lipgloss.NewStyle().
			Background(theme.ColorBase)
)

// Panels.
var (
	rosterPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(theme.ColorSurface2).
				Padding(0, 1)

	feedPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorSurface2).
			Padding(0, 1)

	sectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorLavender)
)

// Status bar and banners.
var (
	statusBarStyle = lipgloss.NewStyle().
			Foreground(theme.ColorSubtext0).
			Background(theme.ColorSurface0).
			Padding(0, 1)

	statusKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorLavender).
			Background(theme.ColorSurface0)

	stallBannerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorBase).
				Background(theme.ColorYellow).
				Padding(0, 1)

	needsInputBannerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorBase).
				Background(theme.ColorTeal).
				Padding(0, 1)

	errorBannerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorBase).
				Background(theme.ColorRed).
				Padding(0, 1)
)

// Event feed.
var (
	dimStyle = lipgloss.NewStyle().
			Foreground(theme.ColorOverlay0)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(theme.ColorOverlay0).
			Italic(true)

	textStyle = lipgloss.NewStyle().
			Foreground(theme.ColorText)

	toolLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorYellow)

	toolResultStyle = lipgloss.NewStyle().
			Foreground(theme.ColorGreen)

	spawnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorMauve)

	chatStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBlue)

	errorStyle = lipgloss.NewStyle().
			Foreground(theme.ColorRed)

	resultStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
)

// Plan approval view.
var (
	planTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBlue)

	planRoleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorMauve)

	planMetaStyle = lipgloss.NewStyle().
			Foreground(theme.ColorSubtext0)
)
