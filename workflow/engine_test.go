package workflow_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/session"
	"github.com/atlasrun/orchestrator/workflow"
)

type fakeLookup struct {
	workers map[string]registry.Worker
}

func (f fakeLookup) Get(name string) (registry.Worker, bool) {
	w, ok := f.workers[name]
	return w, ok
}

type fakeCaller struct {
	responses map[string]json.RawMessage
	err       error
	calls     []string
}

func (f *fakeCaller) CallTool(_ context.Context, toolName string, _ json.RawMessage) (json.RawMessage, error) {
	f.calls = append(f.calls, toolName)
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[toolName], nil
}

func newSink() (*session.ExecutionContext, *[]session.Event) {
	var events []session.Event
	ec := session.NewExecutionContext("sess-1", "exec-1", session.SinkFunc(func(e session.Event) {
		events = append(events, e)
	}))
	return ec, &events
}

func TestExecuteSerialOrderAndResults(t *testing.T) {
	lookup := fakeLookup{workers: map[string]registry.Worker{
		"calc": {Name: "calc", Endpoint: "http://calc.local"},
	}}
	caller := &fakeCaller{responses: map[string]json.RawMessage{
		"add":    json.RawMessage(`3`),
		"double": json.RawMessage(`6`),
	}}
	eng := workflow.New(lookup, workflow.WithClientFactory(func(string) workflow.ToolCaller { return caller }))

	wf := workflow.Workflow{
		Name: "calc-flow",
		Nodes: []workflow.Node{
			{ID: "n1", Type: workflow.NodeTypeMCPCall, WorkerName: "calc", ToolName: "add"},
			{ID: "n2", Type: workflow.NodeTypeMCPCall, WorkerName: "calc", ToolName: "double", Params: map[string]any{"x": "${n1}"}},
		},
		Edges: []workflow.Edge{{Source: "n1", Target: "n2"}},
	}

	ec, events := newSink()
	res, err := eng.Execute(t.Context(), ec, wf)
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, []string{"add", "double"}, caller.calls)
	assert.Equal(t, float64(3), res.Results["n1"])
	assert.Equal(t, float64(6), res.Results["n2"])

	var gotComplete bool
	for _, e := range *events {
		if _, ok := e.(session.Complete); ok {
			gotComplete = true
		}
	}
	assert.True(t, gotComplete)
}

func TestExecuteInvalidWorkflowUnknownWorker(t *testing.T) {
	lookup := fakeLookup{workers: map[string]registry.Worker{}}
	eng := workflow.New(lookup)
	wf := workflow.Workflow{
		Name:  "bad",
		Nodes: []workflow.Node{{ID: "n1", WorkerName: "missing", ToolName: "x"}},
	}
	ec, _ := newSink()
	_, err := eng.Execute(t.Context(), ec, wf)
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidWorkflow, e.Kind())
}

func TestExecuteCycleFails(t *testing.T) {
	lookup := fakeLookup{workers: map[string]registry.Worker{
		"calc": {Name: "calc"},
	}}
	eng := workflow.New(lookup)
	wf := workflow.Workflow{
		Name: "cyclic",
		Nodes: []workflow.Node{
			{ID: "n1", WorkerName: "calc", ToolName: "a"},
			{ID: "n2", WorkerName: "calc", ToolName: "b"},
		},
		Edges: []workflow.Edge{{Source: "n1", Target: "n2"}, {Source: "n2", Target: "n1"}},
	}
	ec, _ := newSink()
	_, err := eng.Execute(t.Context(), ec, wf)
	require.Error(t, err)
}

func TestExecuteFailureSkipsRemaining(t *testing.T) {
	lookup := fakeLookup{workers: map[string]registry.Worker{
		"calc": {Name: "calc"},
	}}
	caller := &fakeCaller{err: errs.New(errs.KindToolError, "worker", "boom", nil)}
	eng := workflow.New(lookup, workflow.WithClientFactory(func(string) workflow.ToolCaller { return caller }))

	wf := workflow.Workflow{
		Name: "fails",
		Nodes: []workflow.Node{
			{ID: "n1", WorkerName: "calc", ToolName: "a"},
			{ID: "n2", WorkerName: "calc", ToolName: "b"},
		},
		Edges: []workflow.Edge{{Source: "n1", Target: "n2"}},
	}
	ec, events := newSink()
	res, err := eng.Execute(t.Context(), ec, wf)
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Status)

	var sawSkipped bool
	for _, e := range *events {
		if ns, ok := e.(session.NodeState); ok && ns.NodeID == "n2" && ns.Status == session.NodeStatusSkipped {
			sawSkipped = true
		}
	}
	assert.True(t, sawSkipped)
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	lookup := fakeLookup{workers: map[string]registry.Worker{"calc": {Name: "calc"}}}
	caller := &fakeCaller{responses: map[string]json.RawMessage{"a": json.RawMessage(`1`)}}
	eng := workflow.New(lookup, workflow.WithClientFactory(func(string) workflow.ToolCaller { return caller }))

	wf := workflow.Workflow{
		Name:  "cancel-me",
		Nodes: []workflow.Node{{ID: "n1", WorkerName: "calc", ToolName: "a"}},
	}
	ec, events := newSink()
	ec.Cancel()
	res, err := eng.Execute(t.Context(), ec, wf)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Status)
	assert.Empty(t, caller.calls)

	for _, e := range *events {
		if ns, ok := e.(session.NodeState); ok {
			assert.Equal(t, session.NodeStatusSkipped, ns.Status, "node %s should be skipped, never failed, when cancelled before it started", ns.NodeID)
		}
	}
}
