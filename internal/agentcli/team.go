package agentcli

import (
	"fmt"
	"strings"

	"github.com/okatz/crewfloor/internal/plan"
)

// BuildTeamPrompt wraps a task in a structured team brief: the roles
// with their focus areas and the dependency graph, so the lead agent
// can coordinate the roster.
func BuildTeamPrompt(task string, p *plan.TaskPlan) string {
	var b strings.Builder

	b.WriteString("You are leading a team to complete the following task:\n\n")
	fmt.Fprintf(&b, "## Task\n%s\n\n", task)

	fmt.Fprintf(&b, "## Team (%d agents)\n\n", p.AgentCount)
	for _, role := range p.Roles {
		fmt.Fprintf(&b, "- **%s**: %s\n", role.Name, role.Focus)
	}

	if len(p.TaskGraph) > 0 {
		b.WriteString("\n## Task Graph\n\n")
		for _, node := range p.TaskGraph {
			deps := "none"
			if len(node.DependsOn) > 0 {
				deps = strings.Join(node.DependsOn, ", ")
			}
			fmt.Fprintf(&b, "- [%s] %s (assigned: %s, depends on: %s)\n",
				node.ID, node.Label, node.Assignee, deps)
		}
	}

	b.WriteString("\n## Instructions\n")
	b.WriteString("Spawn teammates for each role above. ")
	b.WriteString("Coordinate their work following the dependency graph. ")
	b.WriteString("Each teammate should focus solely on their assigned role. ")
	b.WriteString("Report progress as each sub-task completes.\n")

	return b.String()
}
