package config

import (
	"context"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/model"
)

// AgentResolver adapts ModelRegistry to agent.ModelResolver, resolving an
// AgentDefinition's model_id against the configured model entries.
type AgentResolver struct {
	Registry *ModelRegistry
}

// ResolveClient implements agent.ModelResolver.
func (a AgentResolver) ResolveClient(ctx context.Context, def agent.Definition) (model.Client, error) {
	return a.Registry.ResolveClient(ctx, def.ModelID)
}
