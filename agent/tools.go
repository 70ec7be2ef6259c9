package agent

import (
	"github.com/atlasrun/orchestrator/model"
)

// buildToolCatalog flattens every in-scope worker's cached ToolSchemas into
// a single list with synthesized "<worker>__<tool>" names, plus an index
// from synthetic name to a short human summary for tool_execution/
// agent_iteration event payloads.
func (r *Runtime) buildToolCatalog(scope []string) ([]*model.ToolDefinition, map[string]string) {
	var tools []*model.ToolDefinition
	index := make(map[string]string)

	for _, workerName := range scope {
		w, ok := r.registry.Get(workerName)
		if !ok {
			continue
		}
		for _, t := range w.Tools {
			name := synthesizeName(workerName, t.Name)
			tools = append(tools, &model.ToolDefinition{
				Name:        name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
			index[name] = t.Description
		}
	}
	return tools, index
}
