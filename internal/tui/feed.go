package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/okatz/crewfloor/internal/floor"
)

const maxFeedText = 500

// renderEvent formats one timeline event as a styled feed line.
func renderEvent(ev floor.Event) string {
	who := ev.SubAgentName
	text := eventText(ev)

	switch ev.Kind {
	case floor.EventThinking:
		return thinkingStyle.Render("[thinking] " + compactWhitespace(truncateText(text, 200)))
	case floor.EventToolCall:
		return toolLabelStyle.Render("[tool]") + " " + textStyle.Render(truncateText(text, 100))
	case floor.EventToolResult:
		return toolResultStyle.Render("[tool_result]") + " " + dimStyle.Render(truncateText(text, 100))
	case floor.EventOutput:
		label := "[text]"
		if who != "" {
			label = fmt.Sprintf("[%s]", who)
		}
		return resultStyle.Render(label) + " " + textStyle.Render(truncateText(text, maxFeedText))
	case floor.EventSpawn:
		line := fmt.Sprintf("[spawn] %s", who)
		if text != "" {
			line += " — " + truncateText(text, 120)
		}
		return spawnStyle.Render(line)
	case floor.EventTaskUpdate:
		return dimStyle.Render("[update] " + compactWhitespace(truncateText(text, 200)))
	case floor.EventError:
		return errorStyle.Render("[error] " + truncateText(text, maxFeedText))
	case floor.EventChat:
		label := "You"
		if who != "" {
			label = who
		}
		return chatStyle.Render(label+":") + " " + textStyle.Render(truncateText(text, maxFeedText))
	default:
		return dimStyle.Render(fmt.Sprintf("[%s] %s", ev.Kind, truncateText(text, 200)))
	}
}

// eventText digs a human-readable string out of an event payload. Agent
// stream payloads vary; text-bearing fields are tried in order before
// falling back to the compacted raw JSON.
func eventText(ev floor.Event) string {
	if len(ev.Payload) == 0 {
		return ""
	}
	var probe struct {
		Text    string `json:"text"`
		Result  string `json:"result"`
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(ev.Payload, &probe); err == nil {
		for _, s := range []string{probe.Text, probe.Result, probe.Message, probe.Name} {
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return compactWhitespace(string(ev.Payload))
}

func truncateText(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// compactWhitespace replaces runs of whitespace with a single space.
func compactWhitespace(s string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		} else {
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// terminalLines converts a raw PTY chunk into displayable lines.
func terminalLines(data []byte) []string {
	clean := strings.ReplaceAll(ansi.Strip(string(data)), "\r", "")
	return strings.Split(clean, "\n")
}
