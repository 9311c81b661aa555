package backend

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/okatz/crewfloor/internal/agentcli"
	"github.com/okatz/crewfloor/internal/events"
)

type collector struct {
	mu   sync.Mutex
	msgs []any
}

func (c *collector) emit(msg any) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func (c *collector) all() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.msgs...)
}

func newTestBackend() (*Local, *collector) {
	c := &collector{}
	return NewLocal(c.emit), c
}

const sampleStream = `{"type": "system", "session_id": "ext-42"}
{"type": "assistant", "message": {"content": [{"type": "text", "text": "Should I also update the docs?"}]}}
{"type": "result", "result": "Should I also update the docs?", "total_cost_usd": 0.03, "usage": {"input_tokens": 90, "output_tokens": 10}}
`

func TestStreamSessionEmitsEventsAndCompletion(t *testing.T) {
	l, c := newTestBackend()
	l.streamSession("s1", strings.NewReader(sampleStream))

	var gotExternal *events.ExternalIDMsg
	var gotCompleted *events.SessionCompletedMsg
	streamCount := 0
	for _, msg := range c.all() {
		switch m := msg.(type) {
		case events.ExternalIDMsg:
			gotExternal = &m
		case events.SessionCompletedMsg:
			gotCompleted = &m
		case events.StreamEventMsg:
			streamCount++
		}
	}

	if gotExternal == nil || gotExternal.ExternalID != "ext-42" {
		t.Errorf("ExternalIDMsg = %+v", gotExternal)
	}
	if streamCount != 3 {
		t.Errorf("stream events = %d, want 3", streamCount)
	}
	if gotCompleted == nil {
		t.Fatal("no SessionCompletedMsg")
	}
	if !gotCompleted.NeedsInput {
		t.Error("NeedsInput = false for a trailing question")
	}
	if gotCompleted.TokensUsed != 100 || gotCompleted.Cost != 0.03 {
		t.Errorf("usage = %d tokens / %v cost", gotCompleted.TokensUsed, gotCompleted.Cost)
	}
	if gotCompleted.LastResult != "Should I also update the docs?" {
		t.Errorf("LastResult = %q", gotCompleted.LastResult)
	}
}

func TestStreamSessionFallsBackToAssistantText(t *testing.T) {
	l, c := newTestBackend()
	stream := `{"type": "assistant", "message": {"content": [{"type": "text", "text": "All done, no questions."}]}}
{"type": "result"}
`
	l.streamSession("s1", strings.NewReader(stream))

	for _, msg := range c.all() {
		if m, ok := msg.(events.SessionCompletedMsg); ok {
			if m.NeedsInput {
				t.Error("NeedsInput = true for plain statement")
			}
			if m.LastResult != "All done, no questions." {
				t.Errorf("LastResult = %q", m.LastResult)
			}
			return
		}
	}
	t.Fatal("no SessionCompletedMsg")
}

func TestStreamSessionSuppressedAfterTransition(t *testing.T) {
	l, c := newTestBackend()
	l.TransitionToInteractive("s1")
	l.streamSession("s1", strings.NewReader(sampleStream))

	for _, msg := range c.all() {
		if _, ok := msg.(events.SessionCompletedMsg); ok {
			t.Fatal("completion emitted for interactive session")
		}
	}
}

func TestStreamSessionSuppressedAfterStop(t *testing.T) {
	l, c := newTestBackend()
	l.StopTask("s1")
	l.streamSession("s1", strings.NewReader(sampleStream))

	for _, msg := range c.all() {
		if _, ok := msg.(events.SessionCompletedMsg); ok {
			t.Fatal("completion emitted for stopped session")
		}
	}
}

func TestStreamSessionErrorResultFails(t *testing.T) {
	l, c := newTestBackend()
	stream := `{"type": "result", "result": "ran out of budget", "is_error": true}
`
	l.streamSession("s1", strings.NewReader(stream))

	var failed *events.SessionFailedMsg
	for _, msg := range c.all() {
		if m, ok := msg.(events.SessionFailedMsg); ok {
			failed = &m
		}
		if _, ok := msg.(events.SessionCompletedMsg); ok {
			t.Error("completion emitted alongside failure")
		}
	}
	if failed == nil || failed.Err == nil {
		t.Fatalf("SessionFailedMsg = %+v", failed)
	}
}

func TestStopTaskAlwaysEmitsCancelled(t *testing.T) {
	l, c := newTestBackend()
	if l.StopTask("missing") {
		t.Error("StopTask reported a kill with no process")
	}
	found := false
	for _, msg := range c.all() {
		if m, ok := msg.(events.SessionCancelledMsg); ok && m.SessionID == "missing" {
			found = true
		}
	}
	if !found {
		t.Error("no SessionCancelledMsg for already-dead session")
	}
}

func TestContinueTaskRequiresExternalID(t *testing.T) {
	l, _ := newTestBackend()
	if err := l.ContinueTask(context.Background(), "s1", "", "more", "", agentcli.SpawnOptions{}); err == nil {
		t.Error("ContinueTask accepted empty resume handle")
	}
}
