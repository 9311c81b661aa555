// Package plan produces deployment plans for agent task sessions: a
// complexity classification, recommended roles, and a dependency graph
// of sub-tasks.
package plan

// Complexity says whether a task needs one agent or a team.
type Complexity string

const (
	Solo Complexity = "solo"
	Team Complexity = "team"
)

// NodeStatus is the state of a single node in the task graph.
type NodeStatus string

const (
	NodePending NodeStatus = "pending"
	NodeActive  NodeStatus = "active"
	NodeDone    NodeStatus = "done"
	NodeError   NodeStatus = "error"
)

// Role is a recommended agent role in a team deployment.
type Role struct {
	Name    string `json:"name"`
	Focus   string `json:"focus"`
	Runtime string `json:"runtime"`
}

// TaskNode is one unit of work in the dependency graph.
type TaskNode struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Assignee  string     `json:"assignee"`
	DependsOn []string   `json:"dependsOn"`
	Status    NodeStatus `json:"status"`
}

// TaskPlan is the full deployment recommendation for a task.
type TaskPlan struct {
	Complexity            Complexity `json:"complexity"`
	AgentCount            int        `json:"agentCount"`
	Roles                 []Role     `json:"roles"`
	TaskGraph             []TaskNode `json:"taskGraph"`
	RuntimeRecommendation string     `json:"runtimeRecommendation"`
	EstimatedDuration     string     `json:"estimatedDuration"`
}

// Planner turns a task description into a deployment plan. The lifecycle
// controller depends only on this interface; the default implementation
// is the keyword heuristic in this package.
type Planner interface {
	Analyze(task, projectContext string) (*TaskPlan, error)
}
