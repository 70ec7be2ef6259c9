package agent_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/model"
	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/session"
)

type fakeLookup struct {
	workers map[string]registry.Worker
}

func (f fakeLookup) Get(name string) (registry.Worker, bool) {
	w, ok := f.workers[name]
	return w, ok
}

type scriptedClient struct {
	responses []*model.Response
	i         int
}

func (c *scriptedClient) Complete(_ context.Context, _ *model.Request) (*model.Response, error) {
	resp := c.responses[c.i]
	if c.i < len(c.responses)-1 {
		c.i++
	}
	return resp, nil
}

func (c *scriptedClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

type fixedResolver struct{ client model.Client }

func (f fixedResolver) ResolveClient(context.Context, agent.Definition) (model.Client, error) {
	return f.client, nil
}

type fakeCaller struct {
	result json.RawMessage
	err    error
}

func (f *fakeCaller) CallTool(context.Context, string, json.RawMessage) (json.RawMessage, error) {
	return f.result, f.err
}

func newSink() *session.ExecutionContext {
	return session.NewExecutionContext("s1", "e1", session.SinkFunc(func(session.Event) {}))
}

func TestRunTerminatesOnEndTurn(t *testing.T) {
	lookup := fakeLookup{}
	client := &scriptedClient{responses: []*model.Response{
		{Content: []model.Message{{Parts: []model.Part{model.TextPart{Text: "all done"}}}}, StopReason: "end_turn"},
	}}
	rt := agent.New(lookup, fixedResolver{client: client})

	def := agent.Definition{ID: "a1", ModelID: "claude", MaxIterations: 5}
	res, err := rt.Run(t.Context(), newSink(), def, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "all done", res.FinalText)
	assert.False(t, res.MaxIterationsExceeded)
}

func TestRunExecutesToolThenTerminates(t *testing.T) {
	lookup := fakeLookup{workers: map[string]registry.Worker{
		"calc": {Name: "calc", Endpoint: "http://calc.local"},
	}}
	client := &scriptedClient{responses: []*model.Response{
		{
			ToolCalls:  []model.ToolCall{{ID: "t1", Name: "calc__add", Payload: json.RawMessage(`{}`)}},
			StopReason: "tool_use",
		},
		{
			Content:    []model.Message{{Parts: []model.Part{model.TextPart{Text: "the sum is 4"}}}},
			StopReason: "end_turn",
		},
	}}
	rt := agent.New(lookup, fixedResolver{client: client}, agent.WithClientFactory(func(string) agent.ToolCaller {
		return &fakeCaller{result: json.RawMessage(`4`)}
	}))

	def := agent.Definition{ID: "a1", ModelID: "claude", MaxIterations: 5, ToolScope: []string{"calc"}}
	res, err := rt.Run(t.Context(), newSink(), def, "add 2 and 2", nil)
	require.NoError(t, err)
	assert.Equal(t, "the sum is 4", res.FinalText)
}

func TestRunMaxIterationsExceeded(t *testing.T) {
	lookup := fakeLookup{workers: map[string]registry.Worker{"calc": {Name: "calc"}}}
	client := &scriptedClient{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "t1", Name: "calc__add", Payload: json.RawMessage(`{}`)}}, StopReason: "tool_use"},
	}}
	rt := agent.New(lookup, fixedResolver{client: client}, agent.WithClientFactory(func(string) agent.ToolCaller {
		return &fakeCaller{result: json.RawMessage(`1`)}
	}))

	def := agent.Definition{ID: "a1", ModelID: "claude", MaxIterations: 2, ToolScope: []string{"calc"}}
	res, err := rt.Run(t.Context(), newSink(), def, "loop forever", nil)
	require.NoError(t, err)
	assert.True(t, res.MaxIterationsExceeded)
}

func TestRunCancelledBeforeFirstIteration(t *testing.T) {
	lookup := fakeLookup{}
	client := &scriptedClient{responses: []*model.Response{{StopReason: "end_turn"}}}
	rt := agent.New(lookup, fixedResolver{client: client})

	ec := newSink()
	ec.Cancel()
	def := agent.Definition{ID: "a1", ModelID: "claude", MaxIterations: 5}
	res, err := rt.Run(t.Context(), ec, def, "hi", nil)
	require.NoError(t, err)
	assert.True(t, res.ExecutionCancelled)
}
