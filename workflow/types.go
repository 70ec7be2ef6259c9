// Package workflow validates and executes Workflow DAGs: serial, topological,
// left-to-right by insertion order, one node at a time, streaming lifecycle
// events to the borrowed ExecutionContext.
package workflow

import "github.com/atlasrun/orchestrator/errs"

// NodeType identifies a WorkflowNode's behavior. mcp_call is the only kind
// the engine itself interprets; other kinds are reserved for future
// control-flow extensions.
type NodeType string

const NodeTypeMCPCall NodeType = "mcp_call"

// Node is one step of a Workflow.
type Node struct {
	ID         string         `json:"id" yaml:"id"`
	Type       NodeType       `json:"type" yaml:"type"`
	WorkerName string         `json:"worker_name" yaml:"worker_name"`
	ToolName   string         `json:"tool_name" yaml:"tool_name"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Edge declares that Target depends on Source having completed.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Workflow is a named DAG of Nodes connected by Edges.
type Workflow struct {
	Name  string `json:"name" yaml:"name"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Result is the final outcome of one workflow run.
type Result struct {
	Status  string         `json:"status"`
	Results map[string]any `json:"results"`
	Errors  []string       `json:"errors,omitempty"`
}

func invalidWorkflow(detail string) error {
	return errs.New(errs.KindInvalidWorkflow, "workflow", detail, nil)
}
