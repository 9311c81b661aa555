// Package floor holds the central state for agent task sessions: a map
// of independent workspaces ("floors"), each carrying at most one
// session, its sub-agent roster, and an append-only event timeline. The
// Store is the single source of truth; every other component reads from
// it or mutates it through its operations.
package floor

import (
	"encoding/json"
	"time"

	"github.com/okatz/crewfloor/internal/plan"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionCancelled, SessionFailed:
		return true
	}
	return false
}

// SubAgentStatus is the state of one worker within a session.
type SubAgentStatus string

const (
	AgentSpawning SubAgentStatus = "spawning"
	AgentWorking  SubAgentStatus = "working"
	AgentThinking SubAgentStatus = "thinking"
	AgentWaiting  SubAgentStatus = "waiting"
	AgentChatting SubAgentStatus = "chatting"
	AgentDone     SubAgentStatus = "done"
	AgentError    SubAgentStatus = "error"
	AgentSleeping SubAgentStatus = "sleeping"
)

// Terminal reports whether a sub-agent status is an end state.
func (s SubAgentStatus) Terminal() bool {
	switch s {
	case AgentDone, AgentError, AgentSleeping:
		return true
	}
	return false
}

// EventKind classifies a timeline event.
type EventKind string

const (
	EventThinking   EventKind = "thinking"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventOutput     EventKind = "output"
	EventSpawn      EventKind = "spawn"
	EventTaskUpdate EventKind = "task_update"
	EventError      EventKind = "error"
	EventChat       EventKind = "chat"
)

// AppliedOptions are the resolved launch selections for a session.
type AppliedOptions struct {
	Model          string `json:"model,omitempty"`
	PermissionMode string `json:"permissionMode,omitempty"`
	AgentCount     int    `json:"agentCount,omitempty"`
}

// Session is one agent task run attached to a floor.
type Session struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"projectId,omitempty"`
	Task      string        `json:"task"`
	Runtime   string        `json:"runtime"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt,omitzero"`

	// ExternalSessionID is the backend's resume handle. It may be
	// empty until the backend reports it, and it is required before an
	// interactive-mode handoff can occur.
	ExternalSessionID string `json:"externalSessionId,omitempty"`

	Plan           *plan.TaskPlan `json:"plan,omitempty"`
	AppliedOptions AppliedOptions `json:"appliedOptions,omitzero"`
	TokensUsed     int            `json:"tokensUsed,omitempty"`
	CostEstimate   float64        `json:"costEstimate,omitempty"`
	Summary        string         `json:"summary,omitempty"`
}

// SubAgent is one role/worker within a session. The first-spawned agent
// of a team has no parent; the rest point at it.
type SubAgent struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"sessionId"`
	Name       string         `json:"name"`
	Role       string         `json:"role"`
	Status     SubAgentStatus `json:"status"`
	SpawnedAt  time.Time      `json:"spawnedAt"`
	FinishedAt time.Time      `json:"finishedAt,omitzero"`
	ParentID   string         `json:"parentId,omitempty"`
}

// Event is one immutable record on a floor's timeline. Append-only;
// never mutated or reordered after insertion.
type Event struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	SubAgentID   string          `json:"subAgentId,omitempty"`
	SubAgentName string          `json:"subAgentName,omitempty"`
	Kind         EventKind       `json:"kind"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Floor is one independent workspace tab.
type Floor struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Order   int      `json:"order"`
	Session *Session `json:"session,omitempty"`

	SubAgents []SubAgent `json:"subAgents"`
	Events    []Event    `json:"events"`

	// LastEventAt advances only through appendEvent; it is the stall
	// detector's clock source. Zero means no event yet.
	LastEventAt time.Time `json:"lastEventAt,omitzero"`

	// IsHistorical marks a read-only replay of a past session.
	IsHistorical bool `json:"isHistorical,omitempty"`

	NeedsInput     bool   `json:"needsInput,omitempty"`
	LastResultText string `json:"lastResultText,omitempty"`
}

func (f *Floor) clone() *Floor {
	c := *f
	if f.Session != nil {
		sess := *f.Session
		c.Session = &sess
	}
	c.SubAgents = append([]SubAgent(nil), f.SubAgents...)
	c.Events = append([]Event(nil), f.Events...)
	return &c
}
