// Package agentcli builds agent CLI invocations (claude, codex) and
// parses their streamed NDJSON output into normalized events.
package agentcli

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	"github.com/okatz/crewfloor/internal/floor"
	"github.com/okatz/crewfloor/internal/plan"
)

// Runtime names accepted by the builders.
const (
	RuntimeClaude = "claude-code"
	RuntimeCodex  = "codex"
)

// teamModeEnv enables claude's native multi-agent coordination.
const teamModeEnv = "CLAUDE_CODE_EXPERIMENTAL_AGENT_TEAMS=1"

// SpawnOptions are optional launch selections forwarded to the CLI.
type SpawnOptions struct {
	Model              string `json:"model,omitempty"`
	PermissionMode     string `json:"permissionMode,omitempty"`
	AppendSystemPrompt string `json:"appendSystemPrompt,omitempty"`
}

// StreamEvent is one normalized line of agent output. Payload keeps the
// raw JSON object so kind-specific fields survive for display and
// persistence.
type StreamEvent struct {
	Type      string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClaudeCommand builds a non-interactive print-mode invocation:
// claude --print --output-format json "<task>".
func ClaudeCommand(ctx context.Context, task, workdir string, opts SpawnOptions) *exec.Cmd {
	args := []string{"--print", "--output-format", "json"}
	args = append(args, opts.args()...)
	args = append(args, task)
	cmd := exec.CommandContext(ctx, "claude", args...)
	cmd.Dir = workdir
	return cmd
}

// ClaudeTeamCommand builds a team-mode invocation. The task is wrapped
// in a team prompt derived from the plan, and the experimental team env
// flag is set so claude coordinates the roster natively.
func ClaudeTeamCommand(ctx context.Context, task, workdir string, p *plan.TaskPlan, opts SpawnOptions) *exec.Cmd {
	cmd := ClaudeCommand(ctx, BuildTeamPrompt(task, p), workdir, opts)
	cmd.Env = append(os.Environ(), teamModeEnv)
	return cmd
}

// ClaudeResumeCommand builds a follow-up invocation against an existing
// backend session: claude --print --output-format json --resume <id> "<message>".
func ClaudeResumeCommand(ctx context.Context, externalID, message, workdir string, opts SpawnOptions) *exec.Cmd {
	args := []string{"--print", "--output-format", "json", "--resume", externalID}
	args = append(args, opts.args()...)
	args = append(args, message)
	cmd := exec.CommandContext(ctx, "claude", args...)
	cmd.Dir = workdir
	return cmd
}

// ClaudeInteractiveArgs returns the binary and argv for resuming a
// session inside a PTY.
func ClaudeInteractiveArgs(externalID string) (string, []string) {
	if externalID == "" {
		return "claude", nil
	}
	return "claude", []string{"--resume", externalID}
}

// CodexCommand builds a codex invocation: codex --approval-mode full-auto "<task>".
func CodexCommand(ctx context.Context, task, workdir string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "codex", "--approval-mode", "full-auto", task)
	cmd.Dir = workdir
	return cmd
}

func (o SpawnOptions) args() []string {
	var args []string
	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}
	if o.PermissionMode != "" {
		args = append(args, "--permission-mode", o.PermissionMode)
	}
	if o.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", o.AppendSystemPrompt)
	}
	return args
}

// MapKind converts a stream event type into a floor event kind.
func MapKind(eventType string) floor.EventKind {
	switch eventType {
	case "thinking":
		return floor.EventThinking
	case "tool_use", "tool_call", "exec", "function_call":
		return floor.EventToolCall
	case "tool_result", "function_result":
		return floor.EventToolResult
	case "result", "system", "task_update", "plan":
		return floor.EventTaskUpdate
	case "error":
		return floor.EventError
	default:
		return floor.EventOutput
	}
}
