package history

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/plan"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sessionFixture(id string, started time.Time) (*floor.Session, []floor.SubAgent, []floor.Event) {
	sess := &floor.Session{
		ID:                id,
		Task:              "research and write a report",
		Runtime:           "claude-code",
		Status:            floor.SessionCompleted,
		StartedAt:         started,
		EndedAt:           started.Add(3 * time.Minute),
		ExternalSessionID: "ext-" + id,
		Plan:              &plan.TaskPlan{Complexity: plan.Team, AgentCount: 2, RuntimeRecommendation: "claude-code"},
		TokensUsed:        1200,
		CostEstimate:      0.07,
		Summary:           "wrote the report",
	}
	agents := []floor.SubAgent{
		{ID: id + "-a1", Name: "Researcher", Role: "Researcher", Status: floor.AgentDone, SpawnedAt: started, FinishedAt: started.Add(time.Minute)},
		{ID: id + "-a2", Name: "Writer", Role: "Writer", Status: floor.AgentDone, SpawnedAt: started.Add(time.Second), ParentID: id + "-a1"},
	}
	events := []floor.Event{
		{ID: id + "-e1", Kind: floor.EventSpawn, SubAgentID: id + "-a1", SubAgentName: "Researcher", Timestamp: started, Payload: json.RawMessage(`{"note":"spawned"}`)},
		{ID: id + "-e2", Kind: floor.EventOutput, SubAgentName: "Writer", Timestamp: started.Add(time.Minute)},
	}
	return sess, agents, events
}

func TestSaveAndLoadSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	sess, agents, events := sessionFixture("s1", started)

	if err := s.SaveSession(ctx, sess, agents, events); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, gotAgents, gotEvents, err := s.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Task != sess.Task || got.Status != floor.SessionCompleted || got.ExternalSessionID != "ext-s1" {
		t.Errorf("session round-trip wrong: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Plan == nil || got.Plan.Complexity != plan.Team {
		t.Errorf("plan not restored: %+v", got.Plan)
	}
	if len(gotAgents) != 2 || gotAgents[1].ParentID != "s1-a1" {
		t.Errorf("agents round-trip wrong: %+v", gotAgents)
	}
	if gotAgents[0].FinishedAt.IsZero() || !gotAgents[1].FinishedAt.IsZero() {
		t.Errorf("finished_at handling wrong: %+v", gotAgents)
	}
	if len(gotEvents) != 2 || gotEvents[0].Kind != floor.EventSpawn {
		t.Errorf("events round-trip wrong: %+v", gotEvents)
	}
	if string(gotEvents[0].Payload) != `{"note":"spawned"}` {
		t.Errorf("payload = %s", gotEvents[0].Payload)
	}
}

func TestSaveSessionIsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess, agents, events := sessionFixture("s1", time.Now())

	if err := s.SaveSession(ctx, sess, agents, events); err != nil {
		t.Fatalf("first save: %v", err)
	}
	sess.Status = floor.SessionCancelled
	sess.Summary = "stopped by user"
	if err := s.SaveSession(ctx, sess, agents, events[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, _, gotEvents, err := s.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Status != floor.SessionCancelled || got.Summary != "stopped by user" {
		t.Errorf("upsert did not apply: %+v", got)
	}
	if len(gotEvents) != 1 {
		t.Errorf("events not replaced: %d", len(gotEvents))
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older, oa, oe := sessionFixture("old", time.Now().Add(-2*time.Hour))
	newer, na, ne := sessionFixture("new", time.Now().Add(-time.Hour))
	if err := s.SaveSession(ctx, older, oa, oe); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession(ctx, newer, na, ne); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "old" {
		t.Fatalf("list order wrong: %+v", list)
	}
	if list[0].AgentCount != 2 {
		t.Errorf("AgentCount = %d, want 2", list[0].AgentCount)
	}
}

func TestLoadMissingSession(t *testing.T) {
	s := openTestStore(t)
	if _, _, _, err := s.LoadSession(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess, agents, events := sessionFixture("s1", time.Now())
	if err := s.SaveSession(ctx, sess, agents, events); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, _, _, err := s.LoadSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("session still present after delete")
	}
	if err := s.DeleteSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
