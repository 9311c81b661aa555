package backend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/okatz/crewfloor/internal/agentcli"
	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/events"
	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/plan"
	"github.com/okatz/crewfloor/internal/prompt"
)

// maxResultText caps the final result text carried on completion.
const maxResultText = 500

// Local runs agent processes on this machine.
type Local struct {
	emit func(any)

	mu          sync.Mutex
	procs       map[string]*exec.Cmd
	interactive map[string]bool
	stopped     map[string]bool

	ptys *ptyManager
}

var _ Commands = (*Local)(nil)

// NewLocal builds a Local backend. emit receives every message the
// backend produces; the app wires it to the bubbletea program, tests
// wire it to a collector.
func NewLocal(emit func(any)) *Local {
	return &Local{
		emit:        emit,
		procs:       make(map[string]*exec.Cmd),
		interactive: make(map[string]bool),
		stopped:     make(map[string]bool),
		ptys:        newPTYManager(emit),
	}
}

// StartTask launches the runtime's CLI in streaming mode and begins
// piping its output into the event stream.
func (l *Local) StartTask(ctx context.Context, sessionID, task, runtime, workdir string, opts agentcli.SpawnOptions) error {
	var cmd *exec.Cmd
	switch runtime {
	case agentcli.RuntimeCodex:
		cmd = agentcli.CodexCommand(ctx, task, workdir)
	default:
		cmd = agentcli.ClaudeCommand(ctx, task, workdir, opts)
	}
	return l.launch(sessionID, cmd)
}

// StartTeamTask launches claude in team mode with a prompt derived from
// the plan.
func (l *Local) StartTeamTask(ctx context.Context, sessionID, task, workdir string, p *plan.TaskPlan, opts agentcli.SpawnOptions) error {
	return l.launch(sessionID, agentcli.ClaudeTeamCommand(ctx, task, workdir, p, opts))
}

// ContinueTask resumes a completed session with a follow-up message.
func (l *Local) ContinueTask(ctx context.Context, sessionID, externalID, message, workdir string, opts agentcli.SpawnOptions) error {
	if externalID == "" {
		return fmt.Errorf("session %s has no resume handle", sessionID)
	}
	l.mu.Lock()
	delete(l.stopped, sessionID)
	l.mu.Unlock()

	cmd := agentcli.ClaudeResumeCommand(ctx, externalID, message, workdir, opts)
	if err := l.launch(sessionID, cmd); err != nil {
		return err
	}
	l.emit(events.SessionContinuedMsg{SessionID: sessionID})
	return nil
}

// StopTask kills the session's process and emits the cancellation
// either way, so the UI leaves the active state even when the process
// already exited on its own.
func (l *Local) StopTask(sessionID string) bool {
	l.mu.Lock()
	cmd := l.procs[sessionID]
	wasInteractive := l.interactive[sessionID]
	l.stopped[sessionID] = true
	delete(l.interactive, sessionID)
	delete(l.procs, sessionID)
	l.mu.Unlock()

	killed := kill(cmd)
	debug.Logf("backend", "stop session_id=%s killed=%v", sessionID, killed)
	l.emit(events.SessionCancelledMsg{SessionID: sessionID})
	return killed || wasInteractive
}

// TransitionToInteractive marks the session interactive, which makes
// the stream reader swallow the completion triggered by killing the
// streaming process, then kills it to free stdin/stdout for the PTY.
func (l *Local) TransitionToInteractive(sessionID string) bool {
	l.mu.Lock()
	l.interactive[sessionID] = true
	cmd := l.procs[sessionID]
	delete(l.procs, sessionID)
	l.mu.Unlock()

	killed := kill(cmd)
	debug.Logf("backend", "transition to interactive session_id=%s killed=%v", sessionID, killed)
	return killed
}

// SpawnPTY starts an interactive process on a pseudo-terminal.
func (l *Local) SpawnPTY(req PTYRequest) (string, error) {
	return l.ptys.spawn(req)
}

func (l *Local) WritePTY(ptyID string, data []byte) error {
	return l.ptys.write(ptyID, data)
}

func (l *Local) ResizePTY(ptyID string, rows, cols uint16) error {
	return l.ptys.resize(ptyID, rows, cols)
}

func (l *Local) KillPTY(ptyID string) {
	l.ptys.kill(ptyID)
}

func (l *Local) launch(sessionID string, cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", cmd.Path, err)
	}

	l.mu.Lock()
	l.procs[sessionID] = cmd
	l.mu.Unlock()

	go drainStderr(sessionID, stderr)
	go func() {
		l.streamSession(sessionID, stdout)
		cmd.Wait()
		l.mu.Lock()
		if l.procs[sessionID] == cmd {
			delete(l.procs, sessionID)
		}
		l.mu.Unlock()
	}()
	return nil
}

// streamSession reads the agent's NDJSON output and emits stream
// events. When the stream ends it emits a completion carrying question
// detection and usage — unless the session went interactive or was
// stopped, in which case the exit is someone else's story to tell.
func (l *Local) streamSession(sessionID string, stdout io.Reader) {
	var lastResult agentcli.ResultInfo
	var haveResult bool
	var lastAssistantText string

	for ev := range agentcli.Parse(context.Background(), stdout) {
		if extID := ev.ExternalSessionID(); extID != "" {
			l.emit(events.ExternalIDMsg{SessionID: sessionID, ExternalID: extID})
		}
		if text := ev.AssistantText(); text != "" {
			lastAssistantText = text
		}
		if info, ok := ev.Result(); ok {
			lastResult = info
			haveResult = true
		}

		l.emit(events.StreamEventMsg{
			SessionID: sessionID,
			Event: floor.Event{
				Kind:      agentcli.MapKind(ev.Type),
				Payload:   ev.Payload,
				Timestamp: ev.Timestamp,
			},
		})
	}

	l.mu.Lock()
	suppress := l.interactive[sessionID] || l.stopped[sessionID]
	l.mu.Unlock()
	if suppress {
		debug.Logf("backend", "stream end suppressed session_id=%s", sessionID)
		return
	}

	text := lastResult.Text
	if text == "" {
		text = lastAssistantText
	}
	if haveResult && lastResult.IsError {
		l.emit(events.SessionFailedMsg{SessionID: sessionID, Err: fmt.Errorf("agent reported an error: %s", truncateText(text, maxResultText))})
		return
	}

	l.emit(events.SessionCompletedMsg{
		SessionID:  sessionID,
		NeedsInput: prompt.HasQuestion(text),
		LastResult: truncateText(text, maxResultText),
		TokensUsed: lastResult.Tokens,
		Cost:       lastResult.Cost,
		Summary:    truncateText(text, maxResultText),
	})
}

// drainStderr keeps the child from blocking on a full stderr pipe.
func drainStderr(sessionID string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, maxStderrLine), maxStderrLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			debug.Logf("backend", "stderr session_id=%s line=%s", sessionID, line)
		}
	}
}

const maxStderrLine = 256 * 1024

func kill(cmd *exec.Cmd) bool {
	if cmd == nil || cmd.Process == nil {
		return false
	}
	return cmd.Process.Kill() == nil
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
