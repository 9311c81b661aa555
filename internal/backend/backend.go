// Package backend runs agent processes and interactive PTYs on the
// local machine. It delivers progress to the application as messages
// through an emit callback, matching the event types in
// internal/events.
package backend

import (
	"context"

	"github.com/okatz/crewfloor/internal/agentcli"
	"github.com/okatz/crewfloor/internal/plan"
)

// Commands is the surface the session lifecycle and handoff controllers
// fire against. All process work is asynchronous; results arrive as
// emitted messages, never as return values, except for the immediate
// spawn/validation errors noted per method.
type Commands interface {
	// StartTask launches a non-interactive streaming agent process for
	// the session.
	StartTask(ctx context.Context, sessionID, task, runtime, workdir string, opts agentcli.SpawnOptions) error

	// StartTeamTask launches a team-mode process coordinated from the
	// given plan.
	StartTeamTask(ctx context.Context, sessionID, task, workdir string, p *plan.TaskPlan, opts agentcli.SpawnOptions) error

	// StopTask kills the session's process. Reports whether anything
	// was actually killed; a cancellation message is emitted either way.
	StopTask(sessionID string) bool

	// ContinueTask resumes a completed session with a follow-up
	// message, streaming into the same session id.
	ContinueTask(ctx context.Context, sessionID, externalID, message, workdir string, opts agentcli.SpawnOptions) error

	// TransitionToInteractive kills the streaming process so a PTY can
	// take over stdin/stdout, and suppresses the false completion the
	// dying stream would otherwise produce. Reports whether a process
	// was killed.
	TransitionToInteractive(sessionID string) bool

	// SpawnPTY starts an interactive process on a pseudo-terminal and
	// returns its handle. Output arrives as PTYDataMsg, exit as
	// PTYExitMsg.
	SpawnPTY(req PTYRequest) (string, error)

	WritePTY(ptyID string, data []byte) error
	ResizePTY(ptyID string, rows, cols uint16) error
	KillPTY(ptyID string)
}

// PTYRequest describes an interactive process to spawn.
type PTYRequest struct {
	Command string
	Args    []string
	Workdir string
	Rows    uint16
	Cols    uint16
}
