// Package agent implements AgentRuntime: the LLM-in-the-loop tool-use cycle
// driven by an AgentDefinition against a worker tool catalog. Provider wire
// differences (anthropic-style vs openai-style) are already normalized by
// the model package's adapters; this package is format-independent.
package agent

import (
	"strings"

	"github.com/atlasrun/orchestrator/model"
)

// ToolNameSeparator joins a worker name and tool name into the synthetic
// tool identity offered to the LLM. Reserved: worker and tool names must not
// themselves contain it.
const ToolNameSeparator = "__"

// Definition is the configuration for one agent.
type Definition struct {
	ID            string   `json:"id" yaml:"id"`
	SystemPrompt  string   `json:"system_prompt" yaml:"system_prompt"`
	ModelID       string   `json:"model_id" yaml:"model_id"`
	ModelDriver   string   `json:"model_driver" yaml:"model_driver"`
	Temperature   float32  `json:"temperature" yaml:"temperature"`
	MaxTokens     int      `json:"max_tokens" yaml:"max_tokens"`
	MaxIterations int      `json:"max_iterations" yaml:"max_iterations"`
	ToolScope     []string `json:"tool_scope" yaml:"tool_scope"`
}

// DefaultMaxIterations is used when a Definition does not set one.
const DefaultMaxIterations = 10

// iterations returns def.MaxIterations, defaulting per spec invariant
// max_iterations >= 1.
func (d Definition) iterations() int {
	if d.MaxIterations < 1 {
		return DefaultMaxIterations
	}
	return d.MaxIterations
}

// synthesizeName builds the flat tool identity "<worker>__<tool>".
func synthesizeName(worker, tool string) string {
	return worker + ToolNameSeparator + tool
}

// splitName parses a synthetic tool name back into (worker, tool). Splits on
// the first occurrence of the separator so tool names containing it still
// round-trip (worker names are registry keys and never contain it).
func splitName(name string) (worker, tool string, ok bool) {
	idx := strings.Index(name, ToolNameSeparator)
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+len(ToolNameSeparator):], true
}

// Result is the terminal outcome of one AgentRuntime run.
type Result struct {
	FinalText             string
	MaxIterationsExceeded bool
	ExecutionCancelled    bool
	Transcript            []*model.Message
}
