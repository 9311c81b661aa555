// Package ptyscan recovers structured "sub-agent spawned" events from
// raw, chunked, ANSI-colored terminal output. Once a session runs
// interactively no structured events arrive from the backend, so the
// roster is kept accurate by pattern-matching the PTY byte stream.
package ptyscan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// DetectedAgent is one recovered sub-agent spawn. IDs are strictly
// increasing per Scanner instance.
type DetectedAgent struct {
	ID          int
	Role        string
	Description string
	Line        string
}

// contextWindow is how many preceding lines are scanned for role and
// description context around a matched line.
const contextWindow = 6

var (
	// Tool-invocation headers, e.g. "⏳ Agent tool" or "Running the agent tool".
	toolHeaderRe = regexp.MustCompile(`(?i)\bagent\s+tool\b`)

	// Bullet-prefixed Task() invocations from agent transcripts.
	taskHeaderRe = regexp.MustCompile(`^\s*[●⏺•*-]\s*Task\(`)

	// Explicit spawn/launch phrasing.
	spawnPhraseRe = regexp.MustCompile(`(?i)\b(?:spawn(?:ing|ed)?|launch(?:ing|ed)?|starting)\b.{0,40}\b(?:agent|teammate|sub-?agent)\b`)

	// Parenthesized role annotation: "Agent (Researcher)".
	roleAnnotationRe = regexp.MustCompile(`\bAgent\s*\(([A-Za-z][A-Za-z0-9 _-]*)\)`)

	// Labelled role/type fields: role: "Tester" or subagent_type=researcher.
	roleFieldRe = regexp.MustCompile(`(?i)\b(?:role|type|subagent_type)\s*[:=]\s*"?([A-Za-z][A-Za-z0-9_-]*)"?`)

	// Quoted description/prompt fields.
	descFieldRe = regexp.MustCompile(`(?i)\b(?:description|prompt)\s*[:=]\s*"([^"]+)"`)

	// Inline "to <description>" clause on the match line itself.
	descClauseRe = regexp.MustCompile(`(?i)\bto\s+([a-z].{3,79})$`)
)

var spawnPatterns = []*regexp.Regexp{
	toolHeaderRe,
	taskHeaderRe,
	spawnPhraseRe,
	roleAnnotationRe,
}

// Scanner is a stateful incremental detector. Chunks may split lines at
// arbitrary byte boundaries; only complete lines are evaluated, with the
// unterminated tail buffered across calls. Not safe for concurrent use;
// each PTY gets its own Scanner.
type Scanner struct {
	partial string
	recent  []string
	nextID  int
}

// NewScanner returns a fresh Scanner with its ID counter at zero.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Feed consumes a raw output chunk and returns any sub-agent spawns
// completed by it. Unmatched lines produce no output; they are never an
// error.
func (s *Scanner) Feed(chunk string) []DetectedAgent {
	if chunk == "" {
		return nil
	}
	data := s.partial + chunk
	lines := strings.Split(data, "\n")
	s.partial = lines[len(lines)-1]

	var found []DetectedAgent
	for _, raw := range lines[:len(lines)-1] {
		line := cleanLine(raw)
		if agent, ok := s.matchLine(line); ok {
			found = append(found, agent)
		}
		s.remember(line)
	}
	return found
}

// Reset clears the line buffer, the context window, and the ID counter.
// Call it when a new PTY session begins.
func (s *Scanner) Reset() {
	s.partial = ""
	s.recent = nil
	s.nextID = 0
}

func (s *Scanner) matchLine(line string) (DetectedAgent, bool) {
	if strings.TrimSpace(line) == "" {
		return DetectedAgent{}, false
	}
	matched := false
	for _, re := range spawnPatterns {
		if re.MatchString(line) {
			matched = true
			break
		}
	}
	if !matched {
		return DetectedAgent{}, false
	}

	s.nextID++
	agent := DetectedAgent{
		ID:   s.nextID,
		Line: line,
		Role: s.extractRole(line),
	}
	agent.Description = s.extractDescription(line, agent.ID)
	return agent, true
}

// extractRole looks for a role token on the matched line first, then in
// the recent context window, newest line first. Defaults to "Agent".
func (s *Scanner) extractRole(line string) string {
	if m := roleAnnotationRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := roleFieldRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	for i := len(s.recent) - 1; i >= 0; i-- {
		if m := roleAnnotationRe.FindStringSubmatch(s.recent[i]); m != nil {
			return strings.TrimSpace(m[1])
		}
		if m := roleFieldRe.FindStringSubmatch(s.recent[i]); m != nil {
			return m[1]
		}
	}
	return "Agent"
}

func (s *Scanner) extractDescription(line string, id int) string {
	if m := descFieldRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	for i := len(s.recent) - 1; i >= 0; i-- {
		if m := descFieldRe.FindStringSubmatch(s.recent[i]); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if m := descClauseRe.FindStringSubmatch(strings.TrimRight(line, ". ")); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fmt.Sprintf("Subtask %d", id)
}

func (s *Scanner) remember(line string) {
	s.recent = append(s.recent, line)
	if len(s.recent) > contextWindow {
		s.recent = s.recent[len(s.recent)-contextWindow:]
	}
}

func cleanLine(raw string) string {
	return strings.ReplaceAll(ansi.Strip(raw), "\r", "")
}
