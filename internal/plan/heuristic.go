package plan

import (
	"errors"
	"fmt"
	"strings"
)

// teamThreshold is the score at which a task is classified as team work.
const teamThreshold = 5

// maxTeamAgents caps auto-generated team size.
const maxTeamAgents = 6

type teamSignal struct {
	pattern string
	weight  int
}

// teamSignals are weighted keywords suggesting a task needs multiple
// agents. A task crosses the team threshold when matched weights sum to
// teamThreshold, or via the sentence-count and numbered-list boosts.
var teamSignals = []teamSignal{
	{" and ", 2},
	{" then ", 3},
	{" also ", 2},
	{" plus ", 2},
	{"parallel", 4},
	{"team", 4},
	{"concurrent", 4},
	{"simultaneously", 4},
	{"research", 2},
	{"analyze", 2},
	{"compare", 2},
	{"investigate", 2},
	{"report", 2},
	{"document", 1},
	{"write tests", 2},
	{"refactor", 1},
	{"multiple", 3},
	{"several", 3},
	{"each", 2},
	{"all of", 2},
}

// ErrEmptyTask is returned when the task description is blank.
var ErrEmptyTask = errors.New("task description cannot be empty")

// Heuristic is the default Planner. It classifies complexity by keyword
// scoring and derives roles from the task text, with no model calls.
type Heuristic struct{}

var _ Planner = Heuristic{}

// Analyze produces a deployment plan for the task. projectContext may
// hint at a runtime preference ("codex"); otherwise claude-code is used.
func (Heuristic) Analyze(task, projectContext string) (*TaskPlan, error) {
	trimmed := strings.TrimSpace(task)
	if trimmed == "" {
		return nil, ErrEmptyTask
	}

	runtime := runtimeFromContext(projectContext)
	if scoreComplexity(trimmed) >= teamThreshold {
		return buildTeamPlan(trimmed, runtime), nil
	}
	return buildSoloPlan(trimmed, runtime), nil
}

func scoreComplexity(task string) int {
	lower := strings.ToLower(task)
	score := 0
	for _, sig := range teamSignals {
		if strings.Contains(lower, sig.pattern) {
			score += sig.weight
		}
	}

	// 3+ sentences suggest multi-step work.
	sentences := 0
	for _, part := range strings.FieldsFunc(task, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';'
	}) {
		if len(strings.TrimSpace(part)) > 3 {
			sentences++
		}
	}
	switch {
	case sentences >= 3:
		score += 3
	case sentences >= 2:
		score++
	}

	if strings.Contains(lower, "1.") && strings.Contains(lower, "2.") {
		score += 3
	}
	return score
}

func runtimeFromContext(context string) string {
	if strings.Contains(strings.ToLower(context), "codex") {
		return "codex"
	}
	return "claude-code"
}

func buildTeamPlan(task, runtime string) *TaskPlan {
	lower := strings.ToLower(task)
	var roles []Role
	var nodes []TaskNode
	var chain []string

	addRole := func(name, focus, label string) {
		id := fmt.Sprintf("task-%d", len(nodes)+1)
		roles = append(roles, Role{Name: name, Focus: focus, Runtime: runtime})
		var deps []string
		if len(chain) > 0 {
			deps = []string{chain[len(chain)-1]}
		}
		nodes = append(nodes, TaskNode{
			ID:        id,
			Label:     label,
			Assignee:  name,
			DependsOn: deps,
			Status:    NodePending,
		})
		chain = append(chain, id)
	}

	if containsAnyOf(lower, "research", "investigate", "analyze", "compare", "find") {
		addRole("Researcher", researchFocus(lower), "Research and gather information")
	}
	if containsAnyOf(lower, "implement", "build", "create", "fix", "add", "write code", "develop") {
		addRole("Implementer", implementFocus(lower), "Implement the solution")
	}
	if containsAnyOf(lower, "test", "verify", "validate", "check") {
		addRole("Tester", "Verify correctness and write tests", "Test and verify results")
	}
	if containsAnyOf(lower, "write", "document", "report", "summarize") {
		addRole("Writer", writeFocus(lower), "Write documentation or report")
	}

	// Generic lead + worker split when no role keywords matched.
	if len(roles) == 0 {
		roles = []Role{
			{Name: "Lead", Focus: "Coordinate and plan the approach", Runtime: runtime},
			{Name: "Worker", Focus: truncate(task, 80), Runtime: runtime},
		}
		nodes = []TaskNode{
			{ID: "task-1", Label: "Plan the approach", Assignee: "Lead", Status: NodePending},
			{ID: "task-2", Label: truncate(task, 80), Assignee: "Worker", DependsOn: []string{"task-1"}, Status: NodePending},
		}
	}

	agentCount := len(roles)
	if agentCount > maxTeamAgents {
		agentCount = maxTeamAgents
	}
	return &TaskPlan{
		Complexity:            Team,
		AgentCount:            agentCount,
		Roles:                 roles,
		TaskGraph:             nodes,
		RuntimeRecommendation: runtime,
		EstimatedDuration:     fmt.Sprintf("~%d minutes", agentCount*2),
	}
}

func buildSoloPlan(task, runtime string) *TaskPlan {
	return &TaskPlan{
		Complexity: Solo,
		AgentCount: 1,
		Roles: []Role{
			{Name: "Worker", Focus: task, Runtime: runtime},
		},
		TaskGraph: []TaskNode{
			{ID: "task-1", Label: truncate(task, 80), Assignee: "Worker", Status: NodePending},
		},
		RuntimeRecommendation: runtime,
		EstimatedDuration:     "~1 minute",
	}
}

func researchFocus(lower string) string {
	switch {
	case strings.Contains(lower, "competitor"):
		return "Research and analyze competitors"
	case strings.Contains(lower, "compare"):
		return "Research options and gather comparison data"
	default:
		return "Gather information and analyze findings"
	}
}

func implementFocus(lower string) string {
	switch {
	case strings.Contains(lower, "fix"):
		return "Diagnose and implement the fix"
	case strings.Contains(lower, "refactor"):
		return "Refactor and restructure the code"
	default:
		return "Build and implement the solution"
	}
}

func writeFocus(lower string) string {
	switch {
	case strings.Contains(lower, "report"):
		return "Write the final report"
	case strings.Contains(lower, "document"):
		return "Write documentation"
	default:
		return "Write and format the deliverable"
	}
}

func containsAnyOf(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
