package team_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/model"
	"github.com/atlasrun/orchestrator/session"
	"github.com/atlasrun/orchestrator/team"
)

type stubAgents struct {
	byAgentID map[string]string
}

func (s stubAgents) Run(_ context.Context, ec *session.ExecutionContext, def agent.Definition, _ string, _ []*model.Message) (*agent.Result, error) {
	ec.Emit(session.AgentComplete{FinalText: s.byAgentID[def.ID]})
	return &agent.Result{FinalText: s.byAgentID[def.ID]}, nil
}

func defsLookup(defs map[string]agent.Definition) team.AgentLookup {
	return func(agentID string) (agent.Definition, bool) {
		d, ok := defs[agentID]
		return d, ok
	}
}

func newSink() (*session.ExecutionContext, *[]session.Event) {
	var events []session.Event
	ec := session.NewExecutionContext("s1", "e1", session.SinkFunc(func(e session.Event) {
		events = append(events, e)
	}))
	return ec, &events
}

func TestRunSingleRoutesToFirstMember(t *testing.T) {
	agents := stubAgents{byAgentID: map[string]string{"a1": "reply-a1", "a2": "reply-a2"}}
	defs := map[string]agent.Definition{"a1": {ID: "a1"}, "a2": {ID: "a2"}}
	rt := team.New(agents, defsLookup(defs))

	def := team.Definition{Policy: team.PolicySingle, Members: []team.Member{{AgentID: "a1", Role: "lead"}, {AgentID: "a2", Role: "support"}}}
	ec, _ := newSink()
	res, err := rt.Run(t.Context(), ec, def, "hi")
	require.NoError(t, err)
	assert.Equal(t, "reply-a1", res.Reply)
}

func TestRunSequentialConcatenatesLabeledSections(t *testing.T) {
	agents := stubAgents{byAgentID: map[string]string{"a1": "first", "a2": "second"}}
	defs := map[string]agent.Definition{"a1": {ID: "a1"}, "a2": {ID: "a2"}}
	rt := team.New(agents, defsLookup(defs))

	def := team.Definition{Policy: team.PolicySequential, Members: []team.Member{{AgentID: "a1", Role: "writer"}, {AgentID: "a2", Role: "editor"}}}
	ec, _ := newSink()
	res, err := rt.Run(t.Context(), ec, def, "draft this")
	require.NoError(t, err)
	assert.Equal(t, "[writer] first\n\n[editor] second", res.Reply)
}

func TestRunBroadcastInvokesAllConcurrently(t *testing.T) {
	agents := stubAgents{byAgentID: map[string]string{"a1": "opinion-a1", "a2": "opinion-a2"}}
	defs := map[string]agent.Definition{"a1": {ID: "a1"}, "a2": {ID: "a2"}}
	rt := team.New(agents, defsLookup(defs))

	def := team.Definition{Policy: team.PolicyBroadcast, Members: []team.Member{{AgentID: "a1", Role: "optimist"}, {AgentID: "a2", Role: "skeptic"}}}
	ec, events := newSink()
	res, err := rt.Run(t.Context(), ec, def, "thoughts?")
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "[optimist] opinion-a1")
	assert.Contains(t, res.Reply, "[skeptic] opinion-a2")

	var annotatedCount int
	for _, e := range *events {
		if _, ok := e.(session.Annotated); ok {
			annotatedCount++
		}
	}
	assert.Equal(t, 2, annotatedCount)
}

type failingAgent struct {
	fails map[string]bool
}

func (f failingAgent) Run(_ context.Context, ec *session.ExecutionContext, def agent.Definition, _ string, _ []*model.Message) (*agent.Result, error) {
	if f.fails[def.ID] {
		return nil, errors.New("boom")
	}
	ec.Emit(session.AgentComplete{FinalText: "ok-" + def.ID})
	return &agent.Result{FinalText: "ok-" + def.ID}, nil
}

func TestRunBroadcastNotesFailureButReturnsOthers(t *testing.T) {
	agents := failingAgent{fails: map[string]bool{"a1": true}}
	defs := map[string]agent.Definition{"a1": {ID: "a1"}, "a2": {ID: "a2"}}
	rt := team.New(agents, defsLookup(defs))

	def := team.Definition{Policy: team.PolicyBroadcast, Members: []team.Member{{AgentID: "a1", Role: "optimist"}, {AgentID: "a2", Role: "skeptic"}}}
	ec, _ := newSink()
	res, err := rt.Run(t.Context(), ec, def, "thoughts?")
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "[optimist] error: boom")
	assert.Contains(t, res.Reply, "[skeptic] ok-a2")
}

func TestRunSequentialAbortsOnMemberFailure(t *testing.T) {
	agents := failingAgent{fails: map[string]bool{"a2": true}}
	defs := map[string]agent.Definition{"a1": {ID: "a1"}, "a2": {ID: "a2"}}
	rt := team.New(agents, defsLookup(defs))

	def := team.Definition{Policy: team.PolicySequential, Members: []team.Member{{AgentID: "a1", Role: "writer"}, {AgentID: "a2", Role: "editor"}}}
	ec, _ := newSink()
	_, err := rt.Run(t.Context(), ec, def, "draft this")
	require.Error(t, err)
}

func TestRunUnknownPolicyFails(t *testing.T) {
	agents := stubAgents{}
	rt := team.New(agents, defsLookup(nil))
	ec, _ := newSink()
	_, err := rt.Run(t.Context(), ec, team.Definition{Policy: "bogus"}, "x")
	require.Error(t, err)
}
