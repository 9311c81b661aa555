package handoff

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okatz/crewfloor/internal/agentcli"
	"github.com/okatz/crewfloor/internal/backend"
	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/plan"
)

type fakeBackend struct {
	transitions atomic.Int64
	spawns      atomic.Int64
	kills       atomic.Int64
	spawnErr    error
	lastReq     backend.PTYRequest
}

func (f *fakeBackend) StartTask(context.Context, string, string, string, string, agentcli.SpawnOptions) error {
	return nil
}

func (f *fakeBackend) StartTeamTask(context.Context, string, string, string, *plan.TaskPlan, agentcli.SpawnOptions) error {
	return nil
}

func (f *fakeBackend) StopTask(string) bool { return false }

func (f *fakeBackend) ContinueTask(context.Context, string, string, string, string, agentcli.SpawnOptions) error {
	return nil
}

func (f *fakeBackend) TransitionToInteractive(string) bool {
	f.transitions.Add(1)
	return true
}

func (f *fakeBackend) SpawnPTY(req backend.PTYRequest) (string, error) {
	// Widen the race window for concurrent triggers.
	time.Sleep(10 * time.Millisecond)
	if f.spawnErr != nil {
		return "", f.spawnErr
	}
	f.lastReq = req
	n := f.spawns.Add(1)
	if n > 1 {
		return "pty-extra", nil
	}
	return "pty-1", nil
}

func (f *fakeBackend) WritePTY(string, []byte) error          { return nil }
func (f *fakeBackend) ResizePTY(string, uint16, uint16) error { return nil }
func (f *fakeBackend) KillPTY(string)                         { f.kills.Add(1) }

func newFixture(t *testing.T) (*Controller, *floor.Store, *fakeBackend, string) {
	t.Helper()
	store := floor.NewStore()
	floorID := store.ActiveFloorID()
	store.StartSession(floor.Session{Task: "do the thing", Runtime: "claude-code"})
	store.SetExternalSessionID(floorID, "ext-7")

	be := &fakeBackend{}
	c := New(store, be)
	c.SpawnDelay = 0
	return c, store, be, floorID
}

func TestGoInteractiveAtMostOnce(t *testing.T) {
	c, _, be, floorID := newFixture(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GoInteractive(floorID)
		}()
	}
	wg.Wait()

	if got := be.transitions.Load(); got != 1 {
		t.Fatalf("transition calls = %d, want exactly 1", got)
	}
	if got := be.spawns.Load(); got != 1 {
		t.Fatalf("pty spawns = %d, want exactly 1", got)
	}
	if c.FloorMode(floorID) != ModeInteractive {
		t.Fatalf("mode = %s, want interactive", c.FloorMode(floorID))
	}

	// Another trigger while interactive is a no-op too.
	if err := c.GoInteractive(floorID); err != nil {
		t.Fatalf("repeat GoInteractive: %v", err)
	}
	if got := be.transitions.Load(); got != 1 {
		t.Fatalf("transition calls after repeat = %d, want 1", got)
	}
}

func TestGoInteractiveRequiresExternalID(t *testing.T) {
	store := floor.NewStore()
	floorID := store.ActiveFloorID()
	store.StartSession(floor.Session{Task: "t"})

	c := New(store, &fakeBackend{})
	err := c.GoInteractive(floorID)
	if err == nil || !strings.Contains(err.Error(), "resume handle") {
		t.Fatalf("err = %v, want missing resume handle", err)
	}
}

func TestGoInteractiveResumeCommand(t *testing.T) {
	c, _, be, floorID := newFixture(t)

	if err := c.GoInteractive(floorID); err != nil {
		t.Fatalf("GoInteractive: %v", err)
	}
	if be.lastReq.Command != "claude" {
		t.Fatalf("command = %q, want claude", be.lastReq.Command)
	}
	want := []string{"--resume", "ext-7"}
	if len(be.lastReq.Args) != 2 || be.lastReq.Args[0] != want[0] || be.lastReq.Args[1] != want[1] {
		t.Fatalf("args = %v, want %v", be.lastReq.Args, want)
	}
}

func TestGoInteractiveSpawnFailure(t *testing.T) {
	c, _, be, floorID := newFixture(t)
	be.spawnErr = errors.New("claude: executable not found")

	var lines []string
	c.TerminalLine = func(_, line string) { lines = append(lines, line) }

	if err := c.GoInteractive(floorID); err == nil {
		t.Fatal("expected spawn error")
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "Failed to start terminal: ") {
		t.Fatalf("terminal lines = %v", lines)
	}
	if c.FloorMode(floorID) != ModeLive {
		t.Fatal("failed handoff should leave the floor in live mode")
	}

	// The guard must clear so a retry can transition again.
	be.spawnErr = nil
	if err := c.GoInteractive(floorID); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if got := be.transitions.Load(); got != 2 {
		t.Fatalf("transition calls = %d, want 2 (one per attempt)", got)
	}
}

func TestHandlePTYDataSynthesizesAgents(t *testing.T) {
	c, store, _, floorID := newFixture(t)
	if err := c.GoInteractive(floorID); err != nil {
		t.Fatalf("GoInteractive: %v", err)
	}

	gotFloor, ok := c.HandlePTYData("pty-1", []byte("⏳ Agent tool\n⏳ Agent tool\n"))
	if !ok || gotFloor != floorID {
		t.Fatalf("HandlePTYData = (%q, %v), want (%q, true)", gotFloor, ok, floorID)
	}

	f, _ := store.Floor(floorID)
	if len(f.SubAgents) != 2 {
		t.Fatalf("roster size = %d, want 2", len(f.SubAgents))
	}
	if f.SubAgents[0].Name == f.SubAgents[1].Name {
		t.Fatalf("duplicate roster names: %q", f.SubAgents[0].Name)
	}
	for _, a := range f.SubAgents {
		if a.Status != floor.AgentWorking {
			t.Fatalf("agent %s status = %s, want working with zero spawn delay", a.Name, a.Status)
		}
	}

	spawns := 0
	for _, ev := range f.Events {
		if ev.Kind == floor.EventSpawn {
			spawns++
		}
	}
	if spawns != 2 {
		t.Fatalf("spawn events = %d, want 2", spawns)
	}
}

func TestHandlePTYDataUnknownPTY(t *testing.T) {
	c, _, _, _ := newFixture(t)
	if _, ok := c.HandlePTYData("nope", []byte("data")); ok {
		t.Fatal("unknown pty should not route")
	}
}

func TestHandlePTYExitCompletesSession(t *testing.T) {
	c, store, _, floorID := newFixture(t)
	if err := c.GoInteractive(floorID); err != nil {
		t.Fatalf("GoInteractive: %v", err)
	}
	c.HandlePTYData("pty-1", []byte("⏳ Agent tool\n"))

	gotFloor, ok := c.HandlePTYExit("pty-1", 0)
	if !ok || gotFloor != floorID {
		t.Fatalf("HandlePTYExit = (%q, %v)", gotFloor, ok)
	}
	if c.FloorMode(floorID) != ModeLive {
		t.Fatal("floor should return to live mode after exit")
	}

	f, _ := store.Floor(floorID)
	if f.Session.Status != floor.SessionCompleted {
		t.Fatalf("status = %s, want completed", f.Session.Status)
	}
	for _, a := range f.SubAgents {
		if a.Status != floor.AgentDone {
			t.Fatalf("agent %s status = %s, want done", a.Name, a.Status)
		}
	}
}

func TestHandlePTYExitNonZeroFails(t *testing.T) {
	c, store, _, floorID := newFixture(t)
	if err := c.GoInteractive(floorID); err != nil {
		t.Fatalf("GoInteractive: %v", err)
	}

	c.HandlePTYExit("pty-1", 1)
	f, _ := store.Floor(floorID)
	if f.Session.Status != floor.SessionFailed {
		t.Fatalf("status = %s, want failed on non-zero exit", f.Session.Status)
	}
}

func TestCloseInteractiveKillsPTY(t *testing.T) {
	c, _, be, floorID := newFixture(t)
	if err := c.GoInteractive(floorID); err != nil {
		t.Fatalf("GoInteractive: %v", err)
	}

	c.CloseInteractive(floorID)
	if got := be.kills.Load(); got != 1 {
		t.Fatalf("kills = %d, want 1", got)
	}
}
