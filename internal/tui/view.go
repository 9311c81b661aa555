package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/handoff"
	"github.com/okatz/crewfloor/internal/prompt"
	"github.com/okatz/crewfloor/internal/theme"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.viewTabBar())
	b.WriteString("\n")

	if m.pendingPlan != nil {
		b.WriteString(m.viewPlanApproval())
	} else {
		b.WriteString(m.viewFloor())
	}

	if banner := m.viewBanner(); banner != "" {
		b.WriteString("\n")
		b.WriteString(banner)
	}
	if m.inputMode != inputNone {
		b.WriteString("\n")
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(m.viewStatusBar())
	return b.String()
}

func (m Model) viewTabBar() string {
	active := m.store.ActiveFloorID()
	var tabs []string
	for _, f := range m.store.OrderedFloors() {
		label := f.Label
		if f.Session != nil {
			dot := lipgloss.NewStyle().
				Foreground(theme.SessionStatusColor(string(f.Session.Status))).
				Render("●")
			label = dot + " " + label
		}
		if f.IsHistorical {
			label += " (replay)"
		}
		if f.ID == active {
			tabs = append(tabs, tabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(label))
		}
	}
	return tabBarStyle.Width(m.width).Render(strings.Join(tabs, " "))
}

func (m Model) viewFloor() string {
	view := m.store.ActiveView()
	contentHeight := m.height - 6
	if contentHeight < 4 {
		contentHeight = 4
	}

	roster := rosterPanelStyle.
		Width(rosterPanelWidth).
		Height(contentHeight).
		Render(m.viewRoster(view.Session, view.SubAgents))

	feedWidth := m.width - rosterPanelWidth - 6
	if feedWidth < 20 {
		feedWidth = 20
	}

	var feed string
	if m.handoff.FloorMode(view.FloorID) == handoff.ModeInteractive {
		feed = m.viewTerminal(view.FloorID, contentHeight)
	} else {
		feed = m.viewFeed(view.Events, contentHeight)
	}
	right := feedPanelStyle.
		Width(feedWidth).
		Height(contentHeight).
		Render(feed)

	return lipgloss.JoinHorizontal(lipgloss.Top, roster, right)
}

func (m Model) viewRoster(sess *floor.Session, agents []floor.SubAgent) string {
	var b strings.Builder
	b.WriteString(sectionTitleStyle.Render("Session"))
	b.WriteString("\n")
	if sess == nil {
		b.WriteString(dimStyle.Render("no session — press s to start"))
		return b.String()
	}

	b.WriteString(textStyle.Render(truncateText(sess.Task, 80)))
	b.WriteString("\n")
	statusLine := fmt.Sprintf("%s · %s", sess.Status, sess.Runtime)
	b.WriteString(lipgloss.NewStyle().
		Foreground(theme.SessionStatusColor(string(sess.Status))).
		Render(statusLine))
	b.WriteString("\n")
	if sess.TokensUsed > 0 || sess.CostEstimate > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d tokens · $%.4f", sess.TokensUsed, sess.CostEstimate)))
		b.WriteString("\n")
	}
	if !sess.StartedAt.IsZero() {
		end := sess.EndedAt
		if end.IsZero() {
			end = time.Now()
		}
		b.WriteString(dimStyle.Render(end.Sub(sess.StartedAt).Round(time.Second).String()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(sectionTitleStyle.Render(fmt.Sprintf("Agents (%d)", len(agents))))
	b.WriteString("\n")
	for _, a := range agents {
		b.WriteString(theme.AgentStatusIndicator(string(a.Status)))
		name := a.Name
		if a.ParentID == "" && len(agents) > 1 {
			name += " (lead)"
		}
		b.WriteString(textStyle.Render(truncateText(name, 24)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewFeed(evs []floor.Event, height int) string {
	if len(evs) == 0 {
		return dimStyle.Render("waiting for events...")
	}
	start := 0
	if len(evs) > height {
		start = len(evs) - height
	}
	lines := make([]string, 0, len(evs)-start)
	for _, ev := range evs[start:] {
		lines = append(lines, renderEvent(ev))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewTerminal(floorID string, height int) string {
	lines := m.terminal[floorID]
	if tail := m.partial[floorID]; tail != "" {
		lines = append(lines, tail)
	}
	if len(lines) == 0 {
		return dimStyle.Render("terminal starting...")
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewPlanApproval() string {
	p := m.pendingPlan
	var b strings.Builder
	b.WriteString(planTitleStyle.Render("Team plan"))
	b.WriteString("\n\n")
	b.WriteString(textStyle.Render(truncateText(m.pendingTask, 200)))
	b.WriteString("\n\n")
	b.WriteString(planMetaStyle.Render(fmt.Sprintf("%d agents · %s · est. %s",
		p.AgentCount, p.RuntimeRecommendation, p.EstimatedDuration)))
	b.WriteString("\n\n")
	for _, role := range p.Roles {
		b.WriteString("  ")
		b.WriteString(planRoleStyle.Render(role.Name))
		b.WriteString(planMetaStyle.Render(" — " + role.Focus))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, node := range p.TaskGraph {
		line := fmt.Sprintf("  [%s] %s (%s", node.ID, node.Label, node.Assignee)
		if len(node.DependsOn) > 0 {
			line += ", after " + strings.Join(node.DependsOn, ", ")
		}
		line += ")"
		b.WriteString(dimStyle.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(statusKeyStyle.Render("y") + statusBarStyle.Render(" deploy  ") +
		statusKeyStyle.Render("n") + statusBarStyle.Render(" cancel"))
	return b.String()
}

func (m Model) viewBanner() string {
	floorID := m.store.ActiveFloorID()
	view := m.store.ActiveView()

	if m.errText != "" {
		return errorBannerStyle.Render(truncateText(m.errText, 120))
	}
	if m.stalled[floorID] {
		return stallBannerStyle.Render("No activity for a while — the agent may be stuck. Press i for terminal, x to stop.")
	}
	if view.NeedsInput && canContinue(view.Session) {
		hint := "press f to reply"
		if prompt.Classify(view.LastResultText) == prompt.YesNo {
			hint = "press y / N to answer, f to reply"
		}
		return needsInputBannerStyle.Render(
			truncateText("Agent asks: "+compactWhitespace(view.LastResultText), 100) + " — " + hint)
	}
	return ""
}

func (m Model) viewStatusBar() string {
	keys := []struct{ key, label string }{
		{"s", "start"},
		{"f", "follow-up"},
		{"i", "terminal"},
		{"x", "stop"},
		{"n", "new floor"},
		{"w", "close"},
		{"tab", "switch"},
		{"q", "quit"},
	}
	if m.History != nil {
		keys = append(keys, struct{ key, label string }{"r", "replay"})
	}
	var parts []string
	for _, k := range keys {
		parts = append(parts, statusKeyStyle.Render(k.key)+statusBarStyle.Render(" "+k.label))
	}
	return statusBarStyle.Width(m.width).Render(strings.Join(parts, "  "))
}
