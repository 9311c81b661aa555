package floor

import (
	"testing"
	"time"
)

func newTestStore() (*Store, string) {
	s := NewStore()
	return s, s.ActiveFloorID()
}

func TestNewStoreHasDefaultFloor(t *testing.T) {
	s, id := newTestStore()
	if id == "" {
		t.Fatal("no active floor after NewStore")
	}
	floors := s.OrderedFloors()
	if len(floors) != 1 {
		t.Fatalf("floors = %d, want 1", len(floors))
	}
	if floors[0].Label != "Floor 1" {
		t.Errorf("Label = %q", floors[0].Label)
	}
}

func TestCreateFloorAppendsAndActivates(t *testing.T) {
	s, first := newTestStore()
	second := s.CreateFloor("Research")

	if s.ActiveFloorID() != second {
		t.Error("new floor should become active")
	}
	floors := s.OrderedFloors()
	if len(floors) != 2 || floors[0].ID != first || floors[1].ID != second {
		t.Errorf("order wrong: %v", []string{floors[0].ID, floors[1].ID})
	}
	if floors[0].Order >= floors[1].Order {
		t.Errorf("orders not increasing: %d %d", floors[0].Order, floors[1].Order)
	}
}

func TestStartSessionRejectsSecondActive(t *testing.T) {
	s, id := newTestStore()
	if !s.StartSession(Session{Task: "first", Runtime: "claude-code"}) {
		t.Fatal("first StartSession rejected")
	}
	if s.StartSession(Session{Task: "second", Runtime: "claude-code"}) {
		t.Error("second StartSession on an active floor should be a no-op")
	}
	f, _ := s.Floor(id)
	if f.Session.Task != "first" {
		t.Errorf("Task = %q, session was replaced", f.Session.Task)
	}
}

func TestCloseFloorGuardedWhileActive(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{Task: "work"})

	if s.CloseFloor(id) {
		t.Error("CloseFloor succeeded on an active session")
	}
	if _, ok := s.Floor(id); !ok {
		t.Fatal("floor was removed despite guard")
	}

	s.EndSession(id, SessionCompleted)
	if !s.CloseFloor(id) {
		t.Error("CloseFloor failed after session completed")
	}
	if _, ok := s.Floor(id); ok {
		t.Error("floor still present after close")
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{Task: "work"})

	if !s.EndSession(id, SessionCompleted) {
		t.Fatal("first EndSession did not apply")
	}
	f, _ := s.Floor(id)
	status, endedAt := f.Session.Status, f.Session.EndedAt

	if s.EndSession(id, SessionCompleted) {
		t.Error("second EndSession applied, want no-op")
	}
	if s.EndSession(id, SessionCancelled) {
		t.Error("EndSession with different terminal status applied, want no-op")
	}
	f, _ = s.Floor(id)
	if f.Session.Status != status || !f.Session.EndedAt.Equal(endedAt) {
		t.Error("repeated EndSession changed status or endedAt")
	}
}

func TestEndSessionRejectsNonTerminalStatus(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{Task: "work"})
	if s.EndSession(id, SessionActive) {
		t.Error("EndSession(active) applied, want no-op")
	}
}

func TestAppendEventAdvancesClock(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{Task: "work"})

	t1 := time.Now()
	s.AppendEvent(id, Event{Kind: EventOutput, Timestamp: t1})
	s.AppendEvent(id, Event{Kind: EventOutput, Timestamp: t1.Add(time.Second)})
	// Out-of-order timestamp must not move the clock backwards.
	s.AppendEvent(id, Event{Kind: EventOutput, Timestamp: t1.Add(-time.Minute)})

	f, _ := s.Floor(id)
	if len(f.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(f.Events))
	}
	if !f.LastEventAt.Equal(t1.Add(time.Second)) {
		t.Errorf("LastEventAt = %v, want %v", f.LastEventAt, t1.Add(time.Second))
	}
	if f.Events[0].ID == "" {
		t.Error("event ID not assigned")
	}
}

func TestSubAgentLifecycle(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{Task: "work"})

	s.AddSubAgent(id, SubAgent{Name: "Lead", Role: "Lead"})
	f, _ := s.Floor(id)
	agent := f.SubAgents[0]
	if agent.Status != AgentSpawning || agent.SessionID != f.Session.ID {
		t.Errorf("defaults not applied: %+v", agent)
	}

	s.UpdateSubAgentStatus(id, agent.ID, AgentWorking)
	f, _ = s.Floor(id)
	if f.SubAgents[0].Status != AgentWorking || !f.SubAgents[0].FinishedAt.IsZero() {
		t.Errorf("working state wrong: %+v", f.SubAgents[0])
	}

	s.UpdateSubAgentStatus(id, agent.ID, AgentDone)
	f, _ = s.Floor(id)
	if f.SubAgents[0].FinishedAt.IsZero() {
		t.Error("FinishedAt not stamped on terminal status")
	}

	if s.UpdateSubAgentStatus(id, "missing", AgentDone) {
		t.Error("update of unknown agent reported success")
	}
}

func TestReactivateSession(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{Task: "work"})

	if s.ReactivateSession(id) {
		t.Error("reactivated an active session")
	}
	s.EndSession(id, SessionCompleted)
	s.SetNeedsInput(id, true, "Should I continue?")

	if !s.ReactivateSession(id) {
		t.Fatal("ReactivateSession failed on completed session")
	}
	f, _ := s.Floor(id)
	if f.Session.Status != SessionActive || !f.Session.EndedAt.IsZero() {
		t.Errorf("session not reactivated: %+v", f.Session)
	}
	if f.NeedsInput {
		t.Error("NeedsInput not cleared on reactivation")
	}

	s.EndSession(id, SessionCancelled)
	if s.ReactivateSession(id) {
		t.Error("reactivated a cancelled session")
	}
}

func TestClearFloorSession(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{Task: "work"})
	s.AppendEvent(id, Event{Kind: EventOutput})

	if s.ClearFloorSession(id) {
		t.Error("cleared a floor with an active session")
	}
	s.EndSession(id, SessionCompleted)
	if !s.ClearFloorSession(id) {
		t.Fatal("ClearFloorSession failed after completion")
	}
	f, _ := s.Floor(id)
	if f.Session != nil || len(f.Events) != 0 || !f.LastEventAt.IsZero() {
		t.Errorf("floor not reset: %+v", f)
	}
}

func TestFloorBySessionID(t *testing.T) {
	s, id := newTestStore()
	s.StartSession(Session{ID: "sess-1", Task: "work"})

	f, ok := s.FloorBySessionID("sess-1")
	if !ok || f.ID != id {
		t.Errorf("FloorBySessionID = %v, %v", f, ok)
	}
	if _, ok := s.FloorBySessionID("nope"); ok {
		t.Error("found a floor for an unknown session")
	}
}

func TestActiveViewTracksActiveFloor(t *testing.T) {
	s, first := newTestStore()
	s.StartSession(Session{Task: "alpha"})
	s.CreateFloor("Second")

	if v := s.ActiveView(); v.Session != nil {
		t.Error("new empty floor projected a session")
	}

	s.SwitchFloor(first)
	v := s.ActiveView()
	if v.Session == nil || v.Session.Task != "alpha" {
		t.Fatalf("projection = %+v", v.Session)
	}

	// The projection is a copy; mutating it must not leak into the store.
	v.Session.Task = "mutated"
	f, _ := s.Floor(first)
	if f.Session.Task != "alpha" {
		t.Error("projection mutation leaked into the store")
	}
}

func TestCloseActiveFloorFallsBackToFirst(t *testing.T) {
	s, first := newTestStore()
	second := s.CreateFloor("Second")

	if !s.CloseFloor(second) {
		t.Fatal("close of idle floor failed")
	}
	if s.ActiveFloorID() != first {
		t.Errorf("active = %s, want %s", s.ActiveFloorID(), first)
	}
}

func TestOpenHistoricalFloor(t *testing.T) {
	s, _ := newTestStore()
	ts := time.Now().Add(-time.Hour)
	id := s.OpenHistorical("Replay", Session{ID: "old", Task: "past", Status: SessionCompleted},
		[]SubAgent{{ID: "a1", Name: "Worker"}},
		[]Event{{ID: "e1", Kind: EventOutput, Timestamp: ts}})

	f, ok := s.Floor(id)
	if !ok || !f.IsHistorical {
		t.Fatalf("historical floor missing: %+v", f)
	}
	if !f.LastEventAt.Equal(ts) {
		t.Errorf("LastEventAt = %v, want %v", f.LastEventAt, ts)
	}
	if s.ActiveFloorID() != id {
		t.Error("historical floor not activated")
	}
}

func TestSubscribeNotifiesAndUnsubscribes(t *testing.T) {
	s, id := newTestStore()
	count := 0
	unsub := s.Subscribe(func() { count++ })

	s.StartSession(Session{Task: "work"})
	s.AppendEvent(id, Event{Kind: EventOutput})
	if count != 2 {
		t.Errorf("notifications = %d, want 2", count)
	}

	// Rejected mutations do not notify.
	s.StartSession(Session{Task: "again"})
	if count != 2 {
		t.Errorf("rejected mutation notified: %d", count)
	}

	unsub()
	s.EndSession(id, SessionCompleted)
	if count != 2 {
		t.Errorf("notified after unsubscribe: %d", count)
	}
}
