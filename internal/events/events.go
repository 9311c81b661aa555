// Package events defines the messages the backend delivers to the
// application loop. They double as bubbletea messages; tests consume
// them through a plain collector function.
package events

import (
	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/plan"
)

// StreamEventMsg wraps one structured event parsed from an agent's
// output stream.
type StreamEventMsg struct {
	SessionID string
	Event     floor.Event
}

// ExternalIDMsg reports the backend's resume handle for a session, sent
// once the agent process announces it.
type ExternalIDMsg struct {
	SessionID  string
	ExternalID string
}

// SessionCompletedMsg signals that the agent process finished on its
// own. NeedsInput is set when the final output reads as a question.
type SessionCompletedMsg struct {
	SessionID  string
	NeedsInput bool
	LastResult string
	TokensUsed int
	Cost       float64
	Summary    string
}

// SessionCancelledMsg confirms a stop request took effect.
type SessionCancelledMsg struct {
	SessionID string
}

// SessionFailedMsg signals the agent process could not be started or
// died abnormally.
type SessionFailedMsg struct {
	SessionID string
	Err       error
}

// SessionContinuedMsg signals a follow-up message was accepted and the
// session is streaming again.
type SessionContinuedMsg struct {
	SessionID string
}

// PlanReadyMsg carries the deployment plan produced for a task that
// needs user approval before anything starts.
type PlanReadyMsg struct {
	Task string
	Plan *plan.TaskPlan
}

// PTYDataMsg carries one raw output chunk from an interactive PTY.
// Chunk boundaries are arbitrary and may split lines.
type PTYDataMsg struct {
	PTYID string
	Data  []byte
}

// PTYExitMsg signals that an interactive PTY's process exited.
type PTYExitMsg struct {
	PTYID string
	Code  int
}
