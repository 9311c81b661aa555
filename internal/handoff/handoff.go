// Package handoff moves a floor between live streaming mode and an
// interactive terminal attached to the same external session. It owns
// the per-floor mode flag, the PTY-to-floor routing table, and the
// scanner that re-synthesizes sub-agents from raw terminal output.
package handoff

import (
	"fmt"
	"sync"
	"time"

	"github.com/okatz/crewfloor/internal/agentcli"
	"github.com/okatz/crewfloor/internal/backend"
	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/ptyscan"
)

// Mode is a floor's terminal mode.
type Mode string

const (
	// ModeLive means structured events stream in from a headless process.
	ModeLive Mode = "live"
	// ModeInteractive means a PTY owns the session's input and output.
	ModeInteractive Mode = "interactive"
)

// DefaultSpawnDelay is how long a scanner-detected sub-agent stays in
// spawning before advancing to working.
const DefaultSpawnDelay = 1500 * time.Millisecond

type floorState struct {
	mode    Mode
	ptyID   string
	scanner *ptyscan.Scanner
}

// Controller coordinates the live-to-interactive handoff for all floors.
type Controller struct {
	store   *floor.Store
	backend backend.Commands

	// Workdir is where the interactive process runs.
	Workdir string
	// Rows and Cols size newly spawned PTYs. Zero means the PTY
	// defaults apply.
	Rows, Cols uint16
	// SpawnDelay overrides DefaultSpawnDelay; zero or negative makes
	// the spawning-to-working advance synchronous.
	SpawnDelay time.Duration
	// TerminalLine, when set, receives out-of-band lines to show in the
	// floor's terminal view, such as spawn failures.
	TerminalLine func(floorID, line string)

	mu sync.Mutex
	// floors holds state only for floors that have entered interactive
	// mode at least once; absent means live.
	floors map[string]*floorState
	byPTY  map[string]string
	// transitioning guards the backend handoff per session: however
	// many triggers race in, exactly one transition call goes out.
	transitioning map[string]bool
}

// New builds a Controller over the store and backend.
func New(store *floor.Store, cmds backend.Commands) *Controller {
	return &Controller{
		store:         store,
		backend:       cmds,
		SpawnDelay:    DefaultSpawnDelay,
		floors:        make(map[string]*floorState),
		byPTY:         make(map[string]string),
		transitioning: make(map[string]bool),
	}
}

// FloorMode reports the floor's current terminal mode.
func (c *Controller) FloorMode(floorID string) Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.floors[floorID]; ok {
		return st.mode
	}
	return ModeLive
}

// PTYFor returns the PTY handle attached to the floor, if any.
func (c *Controller) PTYFor(floorID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.floors[floorID]
	if !ok || st.ptyID == "" {
		return "", false
	}
	return st.ptyID, true
}

// GoInteractive hands the floor's session over to an interactive
// terminal. The streaming process is killed, a PTY resumes the external
// session, and subsequent output flows through HandlePTYData. Repeat
// and concurrent calls while a handoff is in flight or active are
// no-ops.
func (c *Controller) GoInteractive(floorID string) error {
	f, ok := c.store.Floor(floorID)
	if !ok || f.Session == nil {
		return fmt.Errorf("floor %s has no session", floorID)
	}
	if f.Session.ExternalSessionID == "" {
		return fmt.Errorf("session %s has no resume handle yet", f.Session.ID)
	}
	sessionID := f.Session.ID

	c.mu.Lock()
	if st, ok := c.floors[floorID]; ok && st.mode == ModeInteractive {
		c.mu.Unlock()
		return nil
	}
	if c.transitioning[sessionID] {
		c.mu.Unlock()
		return nil
	}
	c.transitioning[sessionID] = true
	c.mu.Unlock()

	c.backend.TransitionToInteractive(sessionID)

	cmd, args := agentcli.ClaudeInteractiveArgs(f.Session.ExternalSessionID)
	ptyID, err := c.backend.SpawnPTY(backend.PTYRequest{
		Command: cmd,
		Args:    args,
		Workdir: c.Workdir,
		Rows:    c.Rows,
		Cols:    c.Cols,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.transitioning, sessionID)
		c.mu.Unlock()
		debug.Logf("handoff", "pty spawn failed floor=%s err=%v", floorID, err)
		if c.TerminalLine != nil {
			c.TerminalLine(floorID, fmt.Sprintf("Failed to start terminal: %v", err))
		}
		return fmt.Errorf("starting terminal: %w", err)
	}

	c.mu.Lock()
	c.floors[floorID] = &floorState{
		mode:    ModeInteractive,
		ptyID:   ptyID,
		scanner: ptyscan.NewScanner(),
	}
	c.byPTY[ptyID] = floorID
	c.mu.Unlock()
	return nil
}

// HandlePTYData routes one raw output chunk to its floor: detected
// sub-agent spawns become roster entries and timeline events. Returns
// the owning floor id so the UI can render the chunk, or false when the
// PTY is unknown.
func (c *Controller) HandlePTYData(ptyID string, data []byte) (string, bool) {
	c.mu.Lock()
	floorID, ok := c.byPTY[ptyID]
	if !ok {
		c.mu.Unlock()
		return "", false
	}
	st := c.floors[floorID]
	detected := st.scanner.Feed(string(data))
	c.mu.Unlock()

	for _, d := range detected {
		c.addDetectedAgent(floorID, d)
	}
	return floorID, true
}

// HandlePTYExit finalizes a floor when its interactive process ends:
// the floor returns to live mode and the session completes.
func (c *Controller) HandlePTYExit(ptyID string, code int) (string, bool) {
	c.mu.Lock()
	floorID, ok := c.byPTY[ptyID]
	if !ok {
		c.mu.Unlock()
		return "", false
	}
	delete(c.byPTY, ptyID)
	delete(c.floors, floorID)
	c.mu.Unlock()

	f, ok := c.store.Floor(floorID)
	if ok && f.Session != nil {
		c.mu.Lock()
		delete(c.transitioning, f.Session.ID)
		c.mu.Unlock()

		for _, a := range f.SubAgents {
			if !a.Status.Terminal() {
				c.store.UpdateSubAgentStatus(floorID, a.ID, floor.AgentDone)
			}
		}
		status := floor.SessionCompleted
		if code != 0 {
			status = floor.SessionFailed
		}
		c.store.EndSession(floorID, status)
	}
	debug.Logf("handoff", "pty exited floor=%s code=%d", floorID, code)
	return floorID, true
}

// CloseInteractive tears the floor's terminal down without waiting for
// the process to exit. HandlePTYExit still runs when the kill lands.
func (c *Controller) CloseInteractive(floorID string) {
	c.mu.Lock()
	st, ok := c.floors[floorID]
	if !ok || st.ptyID == "" {
		c.mu.Unlock()
		return
	}
	ptyID := st.ptyID
	c.mu.Unlock()

	c.backend.KillPTY(ptyID)
}

// addDetectedAgent synthesizes a roster entry for a scanner detection,
// de-duplicating names against the existing roster.
func (c *Controller) addDetectedAgent(floorID string, d ptyscan.DetectedAgent) {
	f, ok := c.store.Floor(floorID)
	if !ok || f.Session == nil {
		return
	}

	name := uniqueName(d.Role, f.SubAgents)
	c.store.AddSubAgent(floorID, floor.SubAgent{
		Name:   name,
		Role:   d.Role,
		Status: floor.AgentSpawning,
	})

	fresh, _ := c.store.Floor(floorID)
	agentID := ""
	for _, a := range fresh.SubAgents {
		if a.Name == name {
			agentID = a.ID
			break
		}
	}

	c.store.AppendEvent(floorID, floor.Event{
		SubAgentID:   agentID,
		SubAgentName: name,
		Kind:         floor.EventSpawn,
		Payload:      fmt.Appendf(nil, `{"text":%q}`, d.Description),
	})

	advance := func() {
		c.store.UpdateSubAgentStatus(floorID, agentID, floor.AgentWorking)
	}
	if c.SpawnDelay <= 0 {
		advance()
		return
	}
	time.AfterFunc(c.SpawnDelay, advance)
}

func uniqueName(base string, roster []floor.SubAgent) string {
	taken := make(map[string]bool, len(roster))
	for _, a := range roster {
		taken[a.Name] = true
	}
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s %d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
