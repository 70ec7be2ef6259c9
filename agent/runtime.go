package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/model"
	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/session"
	"github.com/atlasrun/orchestrator/telemetry"
	"github.com/atlasrun/orchestrator/worker"
)

// ToolCaller is the subset of worker.Client the runtime depends on.
type ToolCaller interface {
	CallTool(ctx context.Context, toolName string, arguments json.RawMessage) (json.RawMessage, error)
}

// WorkerLookup is the subset of registry.Registry the runtime depends on.
type WorkerLookup interface {
	Get(name string) (registry.Worker, bool)
}

// ModelResolver builds the model.Client an agent run should use. Config
// owns the concrete implementation (resolving model_id against
// configs/models.yaml and environment-sourced credentials); this package
// only depends on the narrow interface.
type ModelResolver interface {
	ResolveClient(ctx context.Context, def Definition) (model.Client, error)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger attaches a logger for iteration diagnostics.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithClientFactory overrides how the runtime builds a ToolCaller for a
// worker endpoint.
func WithClientFactory(f func(endpoint string) ToolCaller) Option {
	return func(r *Runtime) { r.newClient = f }
}

// Runtime drives the tool-use loop for one AgentDefinition.
type Runtime struct {
	registry  WorkerLookup
	models    ModelResolver
	newClient func(endpoint string) ToolCaller
	logger    telemetry.Logger
}

// New builds a Runtime.
func New(reg WorkerLookup, models ModelResolver, opts ...Option) *Runtime {
	r := &Runtime{registry: reg, models: models, logger: telemetry.Noop().Logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) client(endpoint string) ToolCaller {
	if r.newClient != nil {
		return r.newClient(endpoint)
	}
	return worker.New(endpoint, worker.Options{CallTimeout: worker.DefaultCallTimeout})
}

// Run drives the loop from spec 4.G: send transcript + tool catalog, branch
// on stop reason, execute requested tools, repeat until terminal,
// max_iterations, or cancellation.
func (r *Runtime) Run(ctx context.Context, ec *session.ExecutionContext, def Definition, userMessage string, prior []*model.Message) (*Result, error) {
	client, err := r.models.ResolveClient(ctx, def)
	if err != nil {
		return nil, errs.Wrap(errs.KindLLMAuthError, "agent", err)
	}

	tools, toolIndex := r.buildToolCatalog(def.ToolScope)

	transcript := make([]*model.Message, 0, len(prior)+1)
	transcript = append(transcript, prior...)
	transcript = append(transcript, &model.Message{
		Role:  model.ConversationRoleUser,
		Parts: []model.Part{model.TextPart{Text: userMessage}},
	})

	maxIter := def.iterations()
	var lastText string

	for iteration := 1; ; iteration++ {
		if ec.Cancelled() {
			ec.Emit(session.AgentComplete{FinalText: lastText, ExecutionCancelled: true})
			return &Result{FinalText: lastText, ExecutionCancelled: true, Transcript: transcript}, nil
		}

		req := &model.Request{
			Model:       def.ModelID,
			Messages:    transcript,
			Temperature: def.Temperature,
			Tools:       tools,
			MaxTokens:   def.MaxTokens,
		}
		resp, err := client.Complete(ctx, req)
		if err != nil {
			return nil, errs.Wrap(errs.KindLLMTimeout, "agent", fmt.Errorf("model call: %w", err))
		}

		toolsUsedThisTurn := summarizeToolCalls(resp.ToolCalls, toolIndex)
		ec.Emit(session.AgentIteration{
			Iteration:     iteration,
			MaxIterations: maxIter,
			StopReason:    resp.StopReason,
			TokenUsage:    session.TokenUsage{Input: resp.Usage.InputTokens, Output: resp.Usage.OutputTokens},
			Model:         def.ModelID,
			ToolsUsed:     toolsUsedThisTurn,
		})

		assistantMsg := &model.Message{Role: model.ConversationRoleAssistant}
		for _, c := range resp.Content {
			assistantMsg.Parts = append(assistantMsg.Parts, c.Parts...)
		}
		for _, tc := range resp.ToolCalls {
			assistantMsg.Parts = append(assistantMsg.Parts, model.ToolUsePart{ID: tc.ID, Name: tc.Name, Input: json.RawMessage(tc.Payload)})
		}
		transcript = append(transcript, assistantMsg)
		lastText = extractText(resp.Content)

		if !isToolUseStopReason(resp.StopReason) {
			ec.Emit(session.AgentComplete{FinalText: lastText})
			return &Result{FinalText: lastText, Transcript: transcript}, nil
		}

		resultMsg := &model.Message{Role: model.ConversationRoleUser}
		for _, tc := range resp.ToolCalls {
			part := r.executeTool(ctx, ec, tc)
			resultMsg.Parts = append(resultMsg.Parts, part)
		}
		transcript = append(transcript, resultMsg)

		if iteration >= maxIter {
			ec.Emit(session.AgentComplete{FinalText: lastText, MaxIterationsExceeded: true})
			return &Result{FinalText: lastText, MaxIterationsExceeded: true, Transcript: transcript}, nil
		}
	}
}

// isToolUseStopReason recognizes both provider-style tool-use stop reasons,
// on which the loop executes the requested tools and continues (spec 4.G
// provider table).
func isToolUseStopReason(reason string) bool {
	return reason == "tool_use" || reason == "tool_calls"
}

func extractText(content []model.Message) string {
	var text string
	for _, msg := range content {
		for _, part := range msg.Parts {
			if tp, ok := part.(model.TextPart); ok {
				text += tp.Text
			}
		}
	}
	return text
}

func findTool(tools []worker.ToolSchema, name string) (worker.ToolSchema, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return worker.ToolSchema{}, false
}

func summarizeToolCalls(calls []model.ToolCall, toolIndex map[string]string) []session.ToolsUsed {
	out := make([]session.ToolsUsed, 0, len(calls))
	for _, c := range calls {
		out = append(out, session.ToolsUsed{Name: c.Name, Summary: toolIndex[c.Name]})
	}
	return out
}

func (r *Runtime) executeTool(ctx context.Context, ec *session.ExecutionContext, call model.ToolCall) model.ToolResultPart {
	workerName, toolName, ok := splitName(call.Name)
	if !ok {
		return model.ToolResultPart{ToolUseID: call.ID, Content: fmt.Sprintf("malformed tool name %q", call.Name), IsError: true}
	}

	w, ok := r.registry.Get(workerName)
	if !ok {
		return model.ToolResultPart{ToolUseID: call.ID, Content: fmt.Sprintf("worker %q not registered", workerName), IsError: true}
	}

	if tool, ok := findTool(w.Tools, toolName); ok {
		if err := worker.ValidateArguments(tool, call.Payload); err != nil {
			ec.Emit(session.ToolExecution{Worker: workerName, Tool: toolName, Summary: "failed: " + err.Error()})
			return model.ToolResultPart{ToolUseID: call.ID, Content: err.Error(), IsError: true}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, worker.DefaultCallTimeout)
	defer cancel()

	raw, err := r.client(w.Endpoint).CallTool(callCtx, toolName, call.Payload)
	if err != nil {
		ec.Emit(session.ToolExecution{Worker: workerName, Tool: toolName, Summary: "failed: " + err.Error()})
		return model.ToolResultPart{ToolUseID: call.ID, Content: err.Error(), IsError: true}
	}

	ec.Emit(session.ToolExecution{Worker: workerName, Tool: toolName, Summary: "ok"})
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		value = string(raw)
	}
	return model.ToolResultPart{ToolUseID: call.ID, Content: value}
}
