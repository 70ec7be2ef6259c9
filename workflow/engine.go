package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/paramresolver"
	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/session"
	"github.com/atlasrun/orchestrator/telemetry"
	"github.com/atlasrun/orchestrator/worker"
)

// ToolCaller is the subset of worker.Client the engine depends on, narrowed
// for testability.
type ToolCaller interface {
	CallTool(ctx context.Context, toolName string, arguments json.RawMessage) (json.RawMessage, error)
}

// WorkerLookup is the subset of registry.Registry the engine depends on.
type WorkerLookup interface {
	Get(name string) (registry.Worker, bool)
}

// CallTimeout is the spec-mandated per-node worker call timeout.
const CallTimeout = 600 * time.Second

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger for node-level diagnostics.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClientFactory overrides how the engine builds a ToolCaller for a
// worker endpoint. Tests substitute a fake; production uses worker.New.
func WithClientFactory(f func(endpoint string) ToolCaller) Option {
	return func(e *Engine) { e.newClient = f }
}

// Engine executes Workflow DAGs against a WorkerLookup.
type Engine struct {
	registry  WorkerLookup
	resolver  *paramresolver.Resolver
	newClient func(endpoint string) ToolCaller
	logger    telemetry.Logger
}

// New builds an Engine bound to registry for worker resolution.
func New(reg WorkerLookup, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		resolver: paramresolver.New(),
		logger:   telemetry.Noop().Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every node of wf in dependency order against ec, emitting
// node_state events as it goes, and returns the final Result.
func (e *Engine) Execute(ctx context.Context, ec *session.ExecutionContext, wf Workflow) (*Result, error) {
	order, err := validate(wf, func(name string) bool {
		_, ok := e.registry.Get(name)
		return ok
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		byID[n.ID] = n
	}

	var runErrors []string
	failed := false

	for i, nodeID := range order {
		node := byID[nodeID]

		if ec.Cancelled() {
			e.skipRemaining(ec, order[i:])
			return &Result{Status: "cancelled", Results: ec.Results(), Errors: runErrors}, nil
		}

		if failed {
			break
		}

		ec.Emit(session.NodeState{NodeID: nodeID, Status: session.NodeStatusRunning})

		result, err := e.runNode(ctx, ec, node)
		if err != nil {
			runErrors = append(runErrors, fmt.Sprintf("%s: %s", nodeID, err.Error()))
			e.emitFailed(ec, nodeID, err)
			failed = true
			e.skipRemaining(ec, order[i+1:])
			continue
		}

		ec.RecordResult(nodeID, result)
		raw, _ := json.Marshal(result)
		ec.Emit(session.NodeState{NodeID: nodeID, Status: session.NodeStatusCompleted, Result: raw})
	}

	status := "completed"
	if failed {
		status = "failed"
	}
	res := &Result{Status: status, Results: ec.Results(), Errors: runErrors}
	resultJSON, _ := json.Marshal(res)
	ec.Emit(session.Complete{Result: resultJSON})
	return res, nil
}

func (e *Engine) runNode(ctx context.Context, ec *session.ExecutionContext, node Node) (any, error) {
	if ec.Cancelled() {
		return nil, errs.New(errs.KindExecutionCancelled, "workflow", "execution cancelled", nil)
	}

	w, ok := e.registry.Get(node.WorkerName)
	if !ok {
		return nil, errs.New(errs.KindInvalidWorkflow, "workflow", fmt.Sprintf("worker %q no longer registered", node.WorkerName), nil)
	}

	resolved, err := e.resolver.ResolveParams(node.ID, node.Params, ec.Result)
	if err != nil {
		return nil, err
	}
	argsJSON, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("workflow: marshal params for node %s: %w", node.ID, err)
	}

	if tool, ok := findTool(w.Tools, node.ToolName); ok {
		if err := worker.ValidateArguments(tool, argsJSON); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	client := e.client(w.Endpoint)
	raw, err := client.CallTool(callCtx, node.ToolName, argsJSON)
	if err != nil {
		return nil, err
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errs.Wrap(errs.KindWorkerProtocolError, "workflow", fmt.Errorf("decode result of node %s: %w", node.ID, err))
	}
	return value, nil
}

func findTool(tools []worker.ToolSchema, name string) (worker.ToolSchema, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return worker.ToolSchema{}, false
}

func (e *Engine) client(endpoint string) ToolCaller {
	if e.newClient != nil {
		return e.newClient(endpoint)
	}
	return defaultClient(endpoint)
}

func (e *Engine) emitFailed(ec *session.ExecutionContext, nodeID string, err error) {
	ec.Emit(session.NodeState{NodeID: nodeID, Status: session.NodeStatusFailed, Error: err.Error()})
}

func (e *Engine) skipRemaining(ec *session.ExecutionContext, remaining []string) {
	for _, id := range remaining {
		ec.Emit(session.NodeState{NodeID: id, Status: session.NodeStatusSkipped})
	}
}

// NewExecutionID generates a fresh execution id for one workflow run.
func NewExecutionID() string {
	return uuid.NewString()
}
