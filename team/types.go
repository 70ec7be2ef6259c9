// Package team implements TeamRuntime: single/sequential/broadcast routing
// across a TeamDefinition's member agents, aggregating their replies into
// one combined response and relaying their streaming events annotated with
// a stable per-agent color index.
package team

// RoutingPolicy selects how a team dispatches one user message to its
// members.
type RoutingPolicy string

const (
	PolicySingle     RoutingPolicy = "single"
	PolicySequential RoutingPolicy = "sequential"
	PolicyBroadcast  RoutingPolicy = "broadcast"
)

// Member is one agent's role within a team.
type Member struct {
	AgentID string `json:"agent_id" yaml:"agent_id"`
	Role    string `json:"role" yaml:"role"`
}

// Definition is the configuration for one team.
type Definition struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Members       []Member       `json:"members" yaml:"members"`
	Policy        RoutingPolicy  `json:"routing_policy" yaml:"routing_policy"`
	MaxIterations int            `json:"max_iterations" yaml:"max_iterations"`
}

// Result is the combined reply of one team run.
type Result struct {
	Reply string
}
