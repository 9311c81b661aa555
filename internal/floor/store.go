package floor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/hexid"
)

// View is the flat projection of the active floor, recomputed on every
// read so it can never drift from the floor it mirrors.
type View struct {
	FloorID        string
	Session        *Session
	SubAgents      []SubAgent
	Events         []Event
	LastEventAt    time.Time
	NeedsInput     bool
	LastResultText string
	IsHistorical   bool
}

// Store owns all Floor/Session/SubAgent/Event records. All operations
// are synchronous state transitions; calls that would violate a store
// invariant are rejected as no-ops and return false. Safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	floors   map[string]*Floor
	activeID string
	order    int

	subMu sync.Mutex
	subs  map[int]func()
	subID int
}

// NewStore builds a Store with one default floor, already active.
func NewStore() *Store {
	s := &Store{
		floors: make(map[string]*Floor),
		subs:   make(map[int]func()),
	}
	s.CreateFloor("Floor 1")
	return s
}

// Subscribe registers fn to run after every successful mutation. The
// returned function unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	s.subID++
	id := s.subID
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// CreateFloor inserts a new floor at the end of the tab order and makes
// it active.
func (s *Store) CreateFloor(label string) string {
	s.mu.Lock()
	s.order++
	if label == "" {
		label = fmt.Sprintf("Floor %d", s.order)
	}
	f := &Floor{
		ID:    hexid.New(),
		Label: label,
		Order: s.order,
	}
	s.floors[f.ID] = f
	s.activeID = f.ID
	s.mu.Unlock()

	debug.Logf("floor", "floor created floor_id=%s label=%q", f.ID, label)
	s.notify()
	return f.ID
}

// SwitchFloor changes which floor read projections target.
func (s *Store) SwitchFloor(id string) bool {
	s.mu.Lock()
	_, ok := s.floors[id]
	if ok {
		s.activeID = id
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
	return ok
}

// CloseFloor removes a floor. A floor whose session is still active
// cannot be closed; callers must stop the session first.
func (s *Store) CloseFloor(id string) bool {
	s.mu.Lock()
	f, ok := s.floors[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if f.Session != nil && f.Session.Status == SessionActive {
		s.mu.Unlock()
		debug.Logf("floor", "close rejected, session active floor_id=%s", id)
		return false
	}
	delete(s.floors, id)
	if s.activeID == id {
		s.activeID = s.firstFloorIDLocked()
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// StartSession attaches a new active session to the currently active
// floor. Rejected if that floor already has an active session; callers
// must create a new floor first.
func (s *Store) StartSession(sess Session) bool {
	s.mu.Lock()
	f, ok := s.floors[s.activeID]
	if !ok || (f.Session != nil && f.Session.Status == SessionActive) {
		s.mu.Unlock()
		debug.Logf("floor", "start rejected floor_id=%s", s.activeID)
		return false
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	sess.Status = SessionActive
	f.Session = &sess
	f.SubAgents = nil
	f.Events = nil
	f.LastEventAt = time.Time{}
	f.NeedsInput = false
	f.LastResultText = ""
	s.mu.Unlock()

	debug.Logf("floor", "session started floor_id=%s session_id=%s runtime=%s", f.ID, sess.ID, sess.Runtime)
	s.notify()
	return true
}

// ReactivateSession flips a completed session back to active for a
// follow-up message. Only a completed session can be reactivated.
func (s *Store) ReactivateSession(floorID string) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok || f.Session == nil || f.Session.Status != SessionCompleted {
		s.mu.Unlock()
		return false
	}
	f.Session.Status = SessionActive
	f.Session.EndedAt = time.Time{}
	f.NeedsInput = false
	s.mu.Unlock()
	s.notify()
	return true
}

// AddSubAgent appends a sub-agent to the floor's roster.
func (s *Store) AddSubAgent(floorID string, agent SubAgent) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok || f.Session == nil {
		s.mu.Unlock()
		return false
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.SessionID == "" {
		agent.SessionID = f.Session.ID
	}
	if agent.SpawnedAt.IsZero() {
		agent.SpawnedAt = time.Now()
	}
	if agent.Status == "" {
		agent.Status = AgentSpawning
	}
	f.SubAgents = append(f.SubAgents, agent)
	s.mu.Unlock()
	s.notify()
	return true
}

// UpdateSubAgentStatus moves one roster entry to a new status, stamping
// FinishedAt when the status is terminal.
func (s *Store) UpdateSubAgentStatus(floorID, agentID string, status SubAgentStatus) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	updated := false
	for i := range f.SubAgents {
		if f.SubAgents[i].ID != agentID {
			continue
		}
		f.SubAgents[i].Status = status
		if status.Terminal() && f.SubAgents[i].FinishedAt.IsZero() {
			f.SubAgents[i].FinishedAt = time.Now()
		}
		updated = true
		break
	}
	s.mu.Unlock()
	if updated {
		s.notify()
	}
	return updated
}

// AppendEvent appends to the floor's timeline and advances LastEventAt.
// This is the only path by which the liveness clock moves.
func (s *Store) AppendEvent(floorID string, ev Event) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	f.Events = append(f.Events, ev)
	if ev.Timestamp.After(f.LastEventAt) {
		f.LastEventAt = ev.Timestamp
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// EndSession moves the floor's session to a terminal status and stamps
// EndedAt. Idempotent: once the session is terminal, repeated calls are
// no-ops, so an optimistic local call and a later backend confirmation
// can both invoke it safely.
func (s *Store) EndSession(floorID string, status SessionStatus) bool {
	if !status.Terminal() {
		return false
	}
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok || f.Session == nil || f.Session.Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	f.Session.Status = status
	f.Session.EndedAt = time.Now()
	s.mu.Unlock()

	debug.Logf("floor", "session ended floor_id=%s status=%s", floorID, status)
	s.notify()
	return true
}

// SetExternalSessionID records the backend's resume handle once it is
// reported.
func (s *Store) SetExternalSessionID(floorID, externalID string) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok || f.Session == nil {
		s.mu.Unlock()
		return false
	}
	f.Session.ExternalSessionID = externalID
	s.mu.Unlock()
	s.notify()
	return true
}

// SetUsage updates token/cost accounting and the session summary.
func (s *Store) SetUsage(floorID string, tokens int, cost float64, summary string) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok || f.Session == nil {
		s.mu.Unlock()
		return false
	}
	f.Session.TokensUsed = tokens
	f.Session.CostEstimate = cost
	if summary != "" {
		f.Session.Summary = summary
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// SetNeedsInput raises or clears the follow-up prompt flag, recording
// the final result text that triggered it.
func (s *Store) SetNeedsInput(floorID string, needsInput bool, lastResultText string) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	f.NeedsInput = needsInput
	f.LastResultText = lastResultText
	s.mu.Unlock()
	s.notify()
	return true
}

// ClearFloorSession detaches the session entirely, resetting the floor
// to idle while keeping the floor itself.
func (s *Store) ClearFloorSession(floorID string) bool {
	s.mu.Lock()
	f, ok := s.floors[floorID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if f.Session != nil && f.Session.Status == SessionActive {
		s.mu.Unlock()
		return false
	}
	f.Session = nil
	f.SubAgents = nil
	f.Events = nil
	f.LastEventAt = time.Time{}
	f.NeedsInput = false
	f.LastResultText = ""
	s.mu.Unlock()
	s.notify()
	return true
}

// OpenHistorical creates a read-only replay floor populated from a past
// session and makes it active.
func (s *Store) OpenHistorical(label string, sess Session, agents []SubAgent, events []Event) string {
	s.mu.Lock()
	s.order++
	f := &Floor{
		ID:           hexid.New(),
		Label:        label,
		Order:        s.order,
		Session:      &sess,
		SubAgents:    append([]SubAgent(nil), agents...),
		Events:       append([]Event(nil), events...),
		IsHistorical: true,
	}
	for _, ev := range f.Events {
		if ev.Timestamp.After(f.LastEventAt) {
			f.LastEventAt = ev.Timestamp
		}
	}
	s.floors[f.ID] = f
	s.activeID = f.ID
	s.mu.Unlock()
	s.notify()
	return f.ID
}

// Floor returns a copy of one floor.
func (s *Store) Floor(id string) (*Floor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.floors[id]
	if !ok {
		return nil, false
	}
	return f.clone(), true
}

// OrderedFloors returns copies of all floors sorted by tab order.
func (s *Store) OrderedFloors() []*Floor {
	s.mu.RLock()
	out := make([]*Floor, 0, len(s.floors))
	for _, f := range s.floors {
		out = append(out, f.clone())
	}
	s.mu.RUnlock()

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Order > out[j].Order; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// FloorBySessionID finds the floor carrying the given session.
func (s *Store) FloorBySessionID(sessionID string) (*Floor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.floors {
		if f.Session != nil && f.Session.ID == sessionID {
			return f.clone(), true
		}
	}
	return nil, false
}

// ActiveFloorID returns the id of the currently active floor.
func (s *Store) ActiveFloorID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveView computes the flat active-floor projection.
func (s *Store) ActiveView() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.floors[s.activeID]
	if !ok {
		return View{}
	}
	c := f.clone()
	return View{
		FloorID:        c.ID,
		Session:        c.Session,
		SubAgents:      c.SubAgents,
		Events:         c.Events,
		LastEventAt:    c.LastEventAt,
		NeedsInput:     c.NeedsInput,
		LastResultText: c.LastResultText,
		IsHistorical:   c.IsHistorical,
	}
}

func (s *Store) firstFloorIDLocked() string {
	best := ""
	bestOrder := 0
	for id, f := range s.floors {
		if best == "" || f.Order < bestOrder {
			best = id
			bestOrder = f.Order
		}
	}
	return best
}
