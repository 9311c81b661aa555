// Package lifecycle orchestrates agent sessions end to end: analyze a
// task into a plan, deploy solo or team rosters, continue completed
// sessions with follow-ups, and stop running ones. All state lives in
// the floor store; all process work goes through the backend.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/okatz/crewfloor/internal/agentcli"
	"github.com/okatz/crewfloor/internal/backend"
	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/events"
	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/plan"
	"github.com/okatz/crewfloor/internal/prompt"
)

// Recorder persists finished sessions. The history store implements it;
// a nil recorder disables persistence.
type Recorder interface {
	SaveSession(ctx context.Context, sess *floor.Session, agents []floor.SubAgent, evs []floor.Event) error
}

// Controller drives session lifecycles against one floor store.
type Controller struct {
	store    *floor.Store
	backend  backend.Commands
	planner  plan.Planner
	recorder Recorder

	// Workdir is the directory agent processes run in.
	Workdir string
	// Options are forwarded to every launch.
	Options agentcli.SpawnOptions
}

// New builds a Controller. planner may be nil, in which case the
// keyword heuristic is used.
func New(store *floor.Store, cmds backend.Commands, planner plan.Planner) *Controller {
	if planner == nil {
		planner = plan.Heuristic{}
	}
	return &Controller{store: store, backend: cmds, planner: planner}
}

// SetRecorder attaches a session history recorder. Terminal sessions
// are saved asynchronously; failures are logged, never propagated.
func (c *Controller) SetRecorder(r Recorder) {
	c.recorder = r
}

// Backend exposes the command surface shared with other controllers.
func (c *Controller) Backend() backend.Commands {
	return c.backend
}

// Deployment reports what AnalyzeAndDeploy did with a task.
type Deployment struct {
	// Plan is the analysis result.
	Plan *plan.TaskPlan
	// Pending is true when the plan needs user approval; nothing has
	// been started and no session exists yet.
	Pending bool
	// SessionID is set when a solo session was started immediately.
	SessionID string
}

// AnalyzeAndDeploy analyzes the task; solo plans deploy immediately,
// team plans are returned for approval without touching the store.
func (c *Controller) AnalyzeAndDeploy(ctx context.Context, task string) (Deployment, error) {
	p, err := c.planner.Analyze(task, "")
	if err != nil {
		return Deployment{}, fmt.Errorf("analyzing task: %w", err)
	}
	if p.Complexity == plan.Team {
		return Deployment{Plan: p, Pending: true}, nil
	}

	sessionID, err := c.deploySolo(ctx, task, p)
	if err != nil {
		return Deployment{}, err
	}
	return Deployment{Plan: p, SessionID: sessionID}, nil
}

// DeployWithPlan starts an approved team session: one sub-agent per
// role, the first as lead and the rest as its workers, then requests
// the team process launch.
func (c *Controller) DeployWithPlan(ctx context.Context, task string, p *plan.TaskPlan) (string, error) {
	sess := floor.Session{
		Task:    task,
		Runtime: p.RuntimeRecommendation,
		Plan:    p,
		AppliedOptions: floor.AppliedOptions{
			Model:          c.Options.Model,
			PermissionMode: c.Options.PermissionMode,
			AgentCount:     p.AgentCount,
		},
	}
	if !c.store.StartSession(sess) {
		return "", fmt.Errorf("active floor already has a running session")
	}

	view := c.store.ActiveView()
	floorID := view.FloorID
	sessionID := view.Session.ID

	leadID := ""
	for _, role := range p.Roles {
		agent := floor.SubAgent{
			Name:     role.Name,
			Role:     role.Name,
			ParentID: leadID,
			Status:   floor.AgentSpawning,
		}
		c.store.AddSubAgent(floorID, agent)
		if leadID == "" {
			fresh, _ := c.store.Floor(floorID)
			leadID = fresh.SubAgents[0].ID
		}
	}

	if err := c.backend.StartTeamTask(ctx, sessionID, task, c.Workdir, p, c.Options); err != nil {
		debug.Logf("lifecycle", "team launch failed session_id=%s err=%v", sessionID, err)
		c.store.EndSession(floorID, floor.SessionFailed)
		return "", fmt.Errorf("starting team task: %w", err)
	}
	return sessionID, nil
}

// ContinueSession sends a follow-up into a completed session. The
// session re-activates in place; roster and timeline carry on.
func (c *Controller) ContinueSession(ctx context.Context, floorID, message string) error {
	f, ok := c.store.Floor(floorID)
	if !ok || f.Session == nil {
		return fmt.Errorf("floor %s has no session", floorID)
	}
	if f.Session.Status != floor.SessionCompleted {
		return fmt.Errorf("session %s is %s, only completed sessions can continue", f.Session.ID, f.Session.Status)
	}
	if f.Session.ExternalSessionID == "" {
		return fmt.Errorf("session %s has no resume handle yet", f.Session.ID)
	}

	c.store.AppendEvent(floorID, floor.Event{
		Kind:         floor.EventChat,
		SubAgentName: "You",
		Payload:      chatPayload(message),
	})
	c.store.ReactivateSession(floorID)

	if err := c.backend.ContinueTask(ctx, f.Session.ID, f.Session.ExternalSessionID, message, c.Workdir, c.Options); err != nil {
		debug.Logf("lifecycle", "continue failed session_id=%s err=%v", f.Session.ID, err)
		c.store.EndSession(floorID, floor.SessionFailed)
		return fmt.Errorf("continuing session: %w", err)
	}
	return nil
}

// StopSession cancels the floor's session. The store flips first so the
// UI reflects the user's intent instantly; the backend's own
// cancellation confirmation re-applies the same idempotent transition.
func (c *Controller) StopSession(floorID string) {
	f, ok := c.store.Floor(floorID)
	if !ok || f.Session == nil {
		return
	}
	for _, agent := range f.SubAgents {
		if !agent.Status.Terminal() {
			c.store.UpdateSubAgentStatus(floorID, agent.ID, floor.AgentDone)
		}
	}
	c.store.EndSession(floorID, floor.SessionCancelled)
	c.backend.StopTask(f.Session.ID)
	c.record(floorID)
}

// HandleBackendMsg applies one backend message to the store. Unknown
// message types are ignored.
func (c *Controller) HandleBackendMsg(msg any) {
	switch m := msg.(type) {
	case events.StreamEventMsg:
		c.applyStreamEvent(m)
	case events.ExternalIDMsg:
		if f, ok := c.store.FloorBySessionID(m.SessionID); ok {
			c.store.SetExternalSessionID(f.ID, m.ExternalID)
		}
	case events.SessionCompletedMsg:
		c.applyCompleted(m)
	case events.SessionCancelledMsg:
		if f, ok := c.store.FloorBySessionID(m.SessionID); ok {
			c.finishRoster(f)
			c.store.EndSession(f.ID, floor.SessionCancelled)
			c.record(f.ID)
		}
	case events.SessionFailedMsg:
		if f, ok := c.store.FloorBySessionID(m.SessionID); ok {
			debug.Logf("lifecycle", "session failed session_id=%s err=%v", m.SessionID, m.Err)
			c.markRoster(f, floor.AgentError)
			c.store.EndSession(f.ID, floor.SessionFailed)
			c.record(f.ID)
		}
	}
}

func (c *Controller) deploySolo(ctx context.Context, task string, p *plan.TaskPlan) (string, error) {
	sess := floor.Session{
		Task:    task,
		Runtime: p.RuntimeRecommendation,
		Plan:    p,
		AppliedOptions: floor.AppliedOptions{
			Model:          c.Options.Model,
			PermissionMode: c.Options.PermissionMode,
			AgentCount:     1,
		},
	}
	if !c.store.StartSession(sess) {
		return "", fmt.Errorf("active floor already has a running session")
	}

	view := c.store.ActiveView()
	floorID := view.FloorID
	sessionID := view.Session.ID

	name := "Worker"
	if len(p.Roles) > 0 {
		name = p.Roles[0].Name
	}
	c.store.AddSubAgent(floorID, floor.SubAgent{Name: name, Role: name, Status: floor.AgentSpawning})

	if err := c.backend.StartTask(ctx, sessionID, task, sess.Runtime, c.Workdir, c.Options); err != nil {
		debug.Logf("lifecycle", "launch failed session_id=%s err=%v", sessionID, err)
		c.store.EndSession(floorID, floor.SessionFailed)
		return "", fmt.Errorf("starting task: %w", err)
	}
	return sessionID, nil
}

// applyStreamEvent appends the event and nudges the lead agent's status
// to match what the stream shows it doing.
func (c *Controller) applyStreamEvent(m events.StreamEventMsg) {
	f, ok := c.store.FloorBySessionID(m.SessionID)
	if !ok {
		return
	}
	c.store.AppendEvent(f.ID, m.Event)

	var status floor.SubAgentStatus
	switch m.Event.Kind {
	case floor.EventThinking:
		status = floor.AgentThinking
	case floor.EventToolCall, floor.EventToolResult, floor.EventOutput:
		status = floor.AgentWorking
	default:
		return
	}
	for _, agent := range f.SubAgents {
		if !agent.Status.Terminal() {
			c.store.UpdateSubAgentStatus(f.ID, agent.ID, status)
			return
		}
	}
}

func (c *Controller) applyCompleted(m events.SessionCompletedMsg) {
	f, ok := c.store.FloorBySessionID(m.SessionID)
	if !ok {
		return
	}
	c.finishRoster(f)
	c.store.SetUsage(f.ID, m.TokensUsed, m.Cost, m.Summary)
	c.store.EndSession(f.ID, floor.SessionCompleted)

	needsInput := m.NeedsInput
	if !needsInput && m.LastResult != "" {
		needsInput = prompt.HasQuestion(m.LastResult)
	}
	if needsInput {
		c.store.SetNeedsInput(f.ID, true, m.LastResult)
	}
	c.record(f.ID)
}

// record snapshots a floor's finished session into the history store.
func (c *Controller) record(floorID string) {
	if c.recorder == nil {
		return
	}
	f, ok := c.store.Floor(floorID)
	if !ok || f.Session == nil || !f.Session.Status.Terminal() {
		return
	}
	sess, agents, evs := f.Session, f.SubAgents, f.Events
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.recorder.SaveSession(ctx, sess, agents, evs); err != nil {
			debug.Logf("lifecycle", "history save failed session_id=%s err=%v", sess.ID, err)
		}
	}()
}

func (c *Controller) finishRoster(f *floor.Floor) {
	c.markRoster(f, floor.AgentDone)
}

func (c *Controller) markRoster(f *floor.Floor, status floor.SubAgentStatus) {
	for _, agent := range f.SubAgents {
		if !agent.Status.Terminal() {
			c.store.UpdateSubAgentStatus(f.ID, agent.ID, status)
		}
	}
}

func chatPayload(message string) []byte {
	return fmt.Appendf(nil, `{"text":%q}`, message)
}
