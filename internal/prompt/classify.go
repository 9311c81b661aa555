// Package prompt classifies agent follow-up questions so the UI can
// offer the right reply affordance: a yes/no pair of buttons or a
// free-text input.
package prompt

import (
	"regexp"
	"strings"
)

// Kind is the reply affordance chosen for a prompt.
type Kind string

const (
	// YesNo means the prompt can be answered with a single yes or no.
	YesNo Kind = "yes_no"
	// TextInput means the prompt needs a free-form reply.
	TextInput Kind = "text_input"
)

// tailWindow limits classification to the most recent output, where the
// actual question lives.
const tailWindow = 300

// shortQuestionMax is the length cutoff for the single-clause heuristic.
const shortQuestionMax = 100

// openEndedRe matches interrogatives that expect a substantive answer.
var openEndedRe = regexp.MustCompile(`(?i)\b(what|which|how|where|why|describe)\b`)

var openEndedPhrases = []string{
	"please provide",
	"please specify",
}

var closedPhrases = []string{
	"would you like",
	"shall i",
	"should i",
	"do you want",
	"want me to",
	"can i proceed",
	"ok to",
	"proceed with",
	"go ahead",
	"ready to",
	"is this correct",
	"is that correct",
}

// Classify picks the reply affordance for a prompt. Ambiguity always
// resolves to TextInput since a text box can answer anything.
func Classify(text string) Kind {
	tail := tailOf(text, tailWindow)
	trimmed := strings.TrimSpace(tail)
	if trimmed == "" {
		return TextInput
	}

	// Multi-part questions cannot be answered with one button.
	if strings.Count(tail, "?") > 1 {
		return TextInput
	}

	lower := strings.ToLower(tail)
	if openEndedRe.MatchString(tail) || containsAny(lower, openEndedPhrases) {
		return TextInput
	}
	if containsAny(lower, closedPhrases) {
		return YesNo
	}

	// Short single-clause question with no enumeration reads as yes/no.
	if strings.HasSuffix(trimmed, "?") &&
		len([]rune(trimmed)) <= shortQuestionMax &&
		!strings.Contains(trimmed, ",") {
		return YesNo
	}
	return TextInput
}

// HasQuestion reports whether a completed session's final result text
// looks like it is waiting on a human reply.
func HasQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	lower := strings.ToLower(trimmed)
	return containsAny(lower, []string{
		"would you like",
		"shall i",
		"do you want",
		"please confirm",
		"let me know",
		"what should i",
		"which option",
		"should i",
		"can i",
		"could you",
		"any preference",
	})
}

func tailOf(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
