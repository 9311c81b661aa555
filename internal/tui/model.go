// Package tui is the terminal front-end: floor tabs, the live event
// feed, the sub-agent roster, plan approval, follow-up input, and the
// interactive terminal passthrough.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/events"
	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/handoff"
	"github.com/okatz/crewfloor/internal/history"
	"github.com/okatz/crewfloor/internal/lifecycle"
	"github.com/okatz/crewfloor/internal/plan"
	"github.com/okatz/crewfloor/internal/prompt"
	"github.com/okatz/crewfloor/internal/stall"
)

const maxTerminalLines = 500

type inputMode int

const (
	inputNone inputMode = iota
	inputNewTask
	inputFollowUp
)

type tickMsg struct{}

type errMsg struct{ err error }

type deployedMsg struct{ sessionID string }

type replayMsg struct {
	sess   floor.Session
	agents []floor.SubAgent
	events []floor.Event
}

// Model is the bubbletea model for the crewfloor TUI.
type Model struct {
	store     *floor.Store
	lifecycle *lifecycle.Controller
	handoff   *handoff.Controller

	// History, when set, enables replaying archived sessions with r.
	History *history.Store

	// monitors holds one stall monitor per floor that is active, live
	// and worth watching; entries are torn down the moment a floor
	// stops qualifying.
	monitors       map[string]*stall.Monitor
	lastStallCheck time.Time

	stallInterval  time.Duration
	stallThreshold time.Duration

	width  int
	height int

	input     textinput.Model
	inputMode inputMode

	// Pending team plan awaiting approval.
	pendingPlan *plan.TaskPlan
	pendingTask string

	// stalled tracks the banner state per floor.
	stalled map[string]bool

	// terminal holds the rendered tail of each floor's PTY output.
	terminal map[string][]string
	partial  map[string]string

	errText  string
	quitting bool
}

// New builds the TUI model over an already-wired store and controllers.
func New(store *floor.Store, lc *lifecycle.Controller, ho *handoff.Controller, stallInterval, stallThreshold time.Duration) Model {
	if stallInterval <= 0 {
		stallInterval = stall.DefaultInterval
	}
	if stallThreshold <= 0 {
		stallThreshold = stall.DefaultThreshold
	}
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 0

	return Model{
		store:          store,
		lifecycle:      lc,
		handoff:        ho,
		stallInterval:  stallInterval,
		stallThreshold: stallThreshold,
		input:          input,
		monitors:       make(map[string]*stall.Monitor),
		stalled:        make(map[string]bool),
		terminal:       make(map[string][]string),
		partial:        make(map[string]string),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickEvery(),
		tea.SetWindowTitle("crewfloor"),
	)
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeActivePTY()
		return m, nil

	case tickMsg:
		// The UI ticks every second for timers; stall sampling runs on
		// its own configured interval.
		if time.Since(m.lastStallCheck) >= m.stallInterval {
			m.refreshStall()
			m.lastStallCheck = time.Now()
		}
		return m, tickEvery()

	case errMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		return m, nil

	case deployedMsg:
		m.errText = ""
		return m, nil

	case replayMsg:
		label := "Replay: " + truncateText(msg.sess.Task, 24)
		m.store.OpenHistorical(label, msg.sess, msg.agents, msg.events)
		m.errText = ""
		return m, nil

	case events.PlanReadyMsg:
		m.pendingPlan = msg.Plan
		m.pendingTask = msg.Task
		return m, nil

	case events.StreamEventMsg, events.ExternalIDMsg, events.SessionCompletedMsg,
		events.SessionCancelledMsg, events.SessionFailedMsg, events.SessionContinuedMsg:
		m.lifecycle.HandleBackendMsg(msg)
		m.refreshStall()
		return m, nil

	case events.PTYDataMsg:
		if floorID, ok := m.handoff.HandlePTYData(msg.PTYID, msg.Data); ok {
			m.appendTerminal(floorID, msg.Data)
		}
		return m, nil

	case events.PTYExitMsg:
		if floorID, ok := m.handoff.HandlePTYExit(msg.PTYID, msg.Code); ok {
			m.appendTerminal(floorID, fmt.Appendf(nil, "\n[process exited with code %d]\n", msg.Code))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	floorID := m.store.ActiveFloorID()

	// In terminal mode everything except ctrl+q belongs to the process,
	// ctrl+c included.
	if m.inputMode == inputNone && m.pendingPlan == nil &&
		m.handoff.FloorMode(floorID) == handoff.ModeInteractive {
		return m.handleTerminalKey(msg, floorID)
	}

	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}
	if m.pendingPlan != nil {
		return m.handlePlanKey(msg)
	}

	view := m.store.ActiveView()
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "n":
		label := fmt.Sprintf("Floor %d", len(m.store.OrderedFloors())+1)
		id := m.store.CreateFloor(label)
		m.store.SwitchFloor(id)
		m.errText = ""
	case "w":
		if !m.store.CloseFloor(floorID) {
			m.errText = "cannot close: floor has an active session"
		} else {
			m.dropFloorState(floorID)
			m.errText = ""
		}
	case "tab", "]":
		m.switchFloor(1)
	case "shift+tab", "[":
		m.switchFloor(-1)
	case "r":
		if m.History != nil {
			return m, m.replayCmd()
		}
	case "s":
		if view.IsHistorical {
			break
		}
		if view.Session == nil || view.Session.Status.Terminal() {
			m.inputMode = inputNewTask
			m.input.Placeholder = "describe the task"
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	case "f":
		if !view.IsHistorical && canContinue(view.Session) {
			m.inputMode = inputFollowUp
			m.input.Placeholder = "follow-up message"
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	case "y", "Y":
		if view.NeedsInput && canContinue(view.Session) && prompt.Classify(view.LastResultText) == prompt.YesNo {
			return m, m.continueCmd(floorID, "Yes.")
		}
	case "N":
		if view.NeedsInput && canContinue(view.Session) && prompt.Classify(view.LastResultText) == prompt.YesNo {
			return m, m.continueCmd(floorID, "No.")
		}
	case "i":
		if !view.IsHistorical && view.Session != nil {
			return m, m.interactiveCmd(floorID)
		}
	case "x":
		if view.Session != nil && view.Session.Status == floor.SessionActive {
			m.lifecycle.StopSession(floorID)
		}
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputMode = inputNone
		m.input.Blur()
		return m, nil
	case "enter":
		text := m.input.Value()
		mode := m.inputMode
		m.inputMode = inputNone
		m.input.Blur()
		if text == "" {
			return m, nil
		}
		floorID := m.store.ActiveFloorID()
		if mode == inputFollowUp {
			return m, m.continueCmd(floorID, text)
		}
		return m, m.startTaskCmd(text)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handlePlanKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		p := m.pendingPlan
		task := m.pendingTask
		m.pendingPlan = nil
		m.pendingTask = ""
		return m, m.deployPlanCmd(task, p)
	case "n", "esc":
		m.pendingPlan = nil
		m.pendingTask = ""
	}
	return m, nil
}

func (m Model) handleTerminalKey(msg tea.KeyMsg, floorID string) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+q" {
		m.handoff.CloseInteractive(floorID)
		return m, nil
	}
	ptyID, ok := m.handoff.PTYFor(floorID)
	if !ok {
		return m, nil
	}
	if data := keyBytes(msg); len(data) > 0 {
		return m, func() tea.Msg {
			if err := m.lifecycle.Backend().WritePTY(ptyID, data); err != nil {
				return errMsg{err}
			}
			return nil
		}
	}
	return m, nil
}

// resizeActivePTY keeps an attached interactive terminal in step with
// the panel it renders into.
func (m *Model) resizeActivePTY() {
	floorID := m.store.ActiveFloorID()
	if m.handoff.FloorMode(floorID) != handoff.ModeInteractive {
		return
	}
	ptyID, ok := m.handoff.PTYFor(floorID)
	if !ok {
		return
	}
	rows := max(m.height-6, 4)
	cols := max(m.width-rosterPanelWidth-6, 20)
	if err := m.lifecycle.Backend().ResizePTY(ptyID, uint16(rows), uint16(cols)); err != nil {
		debug.Logf("tui", "resize pty_id=%s: %v", ptyID, err)
	}
}

func (m *Model) switchFloor(delta int) {
	floors := m.store.OrderedFloors()
	if len(floors) < 2 {
		return
	}
	active := m.store.ActiveFloorID()
	idx := 0
	for i, f := range floors {
		if f.ID == active {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(floors)) % len(floors)
	m.store.SwitchFloor(floors[idx].ID)
}

// refreshStall keeps one monitor per floor that is worth watching: an
// active session on a floor still in live mode. Interactive floors are
// never flagged; the user is already at the terminal.
func (m *Model) refreshStall() {
	now := time.Now()
	seen := make(map[string]bool)
	for _, f := range m.store.OrderedFloors() {
		seen[f.ID] = true
		watchable := f.Session != nil && f.Session.Status == floor.SessionActive &&
			m.handoff.FloorMode(f.ID) != handoff.ModeInteractive

		if !watchable {
			m.dropMonitor(f.ID)
			continue
		}
		mon, ok := m.monitors[f.ID]
		if !ok {
			floorID := f.ID
			mon = stall.NewMonitor(m.stallInterval, m.stallThreshold,
				func() time.Time {
					fl, ok := m.store.Floor(floorID)
					if !ok {
						return time.Time{}
					}
					return fl.LastEventAt
				},
				nil, // verdicts are read off Tick inside the update loop
			)
			m.monitors[floorID] = mon
		}
		m.stalled[f.ID] = mon.Tick(now)
	}
	for id := range m.monitors {
		if !seen[id] {
			m.dropMonitor(id)
		}
	}
}

// dropFloorState releases everything the model tracked for a closed
// floor.
func (m *Model) dropFloorState(floorID string) {
	m.dropMonitor(floorID)
	delete(m.stalled, floorID)
	delete(m.terminal, floorID)
	delete(m.partial, floorID)
}

func (m *Model) dropMonitor(floorID string) {
	if mon, ok := m.monitors[floorID]; ok {
		mon.Stop()
		delete(m.monitors, floorID)
	}
	m.stalled[floorID] = false
}

func (m *Model) appendTerminal(floorID string, data []byte) {
	lines := terminalLines(append([]byte(m.partial[floorID]), data...))
	m.partial[floorID] = lines[len(lines)-1]
	buf := append(m.terminal[floorID], lines[:len(lines)-1]...)
	if len(buf) > maxTerminalLines {
		buf = buf[len(buf)-maxTerminalLines:]
	}
	m.terminal[floorID] = buf
}

func (m Model) startTaskCmd(task string) tea.Cmd {
	return func() tea.Msg {
		dep, err := m.lifecycle.AnalyzeAndDeploy(context.Background(), task)
		if err != nil {
			return errMsg{err}
		}
		if dep.Pending {
			return events.PlanReadyMsg{Task: task, Plan: dep.Plan}
		}
		return deployedMsg{sessionID: dep.SessionID}
	}
}

func (m Model) deployPlanCmd(task string, p *plan.TaskPlan) tea.Cmd {
	return func() tea.Msg {
		sessionID, err := m.lifecycle.DeployWithPlan(context.Background(), task, p)
		if err != nil {
			return errMsg{err}
		}
		return deployedMsg{sessionID: sessionID}
	}
}

func (m Model) continueCmd(floorID, message string) tea.Cmd {
	return func() tea.Msg {
		if err := m.lifecycle.ContinueSession(context.Background(), floorID, message); err != nil {
			return errMsg{err}
		}
		return deployedMsg{}
	}
}

// replayCmd loads the most recent archived session into a read-only
// floor.
func (m Model) replayCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		list, err := m.History.ListSessions(ctx, 1)
		if err != nil {
			return errMsg{err}
		}
		if len(list) == 0 {
			return errMsg{fmt.Errorf("no archived sessions to replay")}
		}
		sess, agents, evs, err := m.History.LoadSession(ctx, list[0].ID)
		if err != nil {
			return errMsg{err}
		}
		return replayMsg{sess: *sess, agents: agents, events: evs}
	}
}

func (m Model) interactiveCmd(floorID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.handoff.GoInteractive(floorID); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func canContinue(sess *floor.Session) bool {
	return sess != nil && sess.Status == floor.SessionCompleted && sess.ExternalSessionID != ""
}

// keyBytes translates a key press into the byte sequence an interactive
// process expects on its PTY.
func keyBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte(" ")
	case tea.KeyEnter:
		return []byte("\r")
	case tea.KeyBackspace:
		return []byte{0x7f}
	case tea.KeyTab:
		return []byte("\t")
	case tea.KeyEsc:
		return []byte{0x1b}
	case tea.KeyUp:
		return []byte("\x1b[A")
	case tea.KeyDown:
		return []byte("\x1b[B")
	case tea.KeyRight:
		return []byte("\x1b[C")
	case tea.KeyLeft:
		return []byte("\x1b[D")
	case tea.KeyCtrlC:
		return []byte{0x03}
	case tea.KeyCtrlD:
		return []byte{0x04}
	}
	return nil
}
