package agentcli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const maxLineSize = 1024 * 1024 // 1 MB

// ParseLine turns one line of CLI output into a StreamEvent. JSON lines
// take their "type" field as the event type, defaulting to "output";
// non-JSON lines are wrapped as plain text output. Blank lines yield
// ok=false.
func ParseLine(line string) (StreamEvent, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return StreamEvent{}, false
	}

	ev := StreamEvent{Type: "output", Timestamp: time.Now()}

	var head struct {
		Type string `json:"type"`
	}
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		ev.Payload = json.RawMessage(trimmed)
		if err := json.Unmarshal([]byte(trimmed), &head); err == nil && head.Type != "" {
			ev.Type = head.Type
		}
		return ev, true
	}

	text, _ := json.Marshal(trimmed)
	ev.Payload = json.RawMessage(fmt.Sprintf(`{"text":%s}`, text))
	return ev, true
}

// Parse reads NDJSON lines from r and sends parsed events on the
// returned channel. The channel is closed at EOF or when the context is
// cancelled.
func Parse(ctx context.Context, r io.Reader) <-chan StreamEvent {
	ch := make(chan StreamEvent, 64)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			ev, ok := ParseLine(scanner.Text())
			if !ok {
				continue
			}
			ch <- ev
		}
	}()
	return ch
}

// payloadProbe covers the payload fields the coordinator cares about
// across claude's system, assistant, and result events.
type payloadProbe struct {
	SessionID    string  `json:"session_id"`
	Result       string  `json:"result"`
	IsError      bool    `json:"is_error"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Usage        *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

func (e StreamEvent) probe() payloadProbe {
	var p payloadProbe
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &p)
	}
	return p
}

// ExternalSessionID extracts the backend's resume handle from a system
// event. Empty when the event carries none.
func (e StreamEvent) ExternalSessionID() string {
	if e.Type != "system" {
		return ""
	}
	return e.probe().SessionID
}

// AssistantText returns the concatenated text blocks of an assistant
// event, used as the question-detection fallback when the result event
// carries no text.
func (e StreamEvent) AssistantText() string {
	if e.Type != "assistant" {
		return ""
	}
	p := e.probe()
	if p.Message == nil {
		return ""
	}
	var parts []string
	for _, block := range p.Message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ResultInfo is the usage summary extracted from a result event.
type ResultInfo struct {
	Text    string
	Tokens  int
	Cost    float64
	IsError bool
}

// Result extracts usage and final text from a result event. ok is false
// for any other event type.
func (e StreamEvent) Result() (ResultInfo, bool) {
	if e.Type != "result" {
		return ResultInfo{}, false
	}
	p := e.probe()
	info := ResultInfo{Text: p.Result, Cost: p.TotalCostUSD, IsError: p.IsError}
	if p.Usage != nil {
		info.Tokens = p.Usage.InputTokens + p.Usage.OutputTokens
	}
	return info, true
}
