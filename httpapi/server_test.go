package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/config"
	"github.com/atlasrun/orchestrator/httpapi"
	"github.com/atlasrun/orchestrator/model"
	"github.com/atlasrun/orchestrator/registry"
	"github.com/atlasrun/orchestrator/session"
	"github.com/atlasrun/orchestrator/team"
	"github.com/atlasrun/orchestrator/workflow"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	workers := registry.New()
	workers.Register(registry.Worker{Name: "calc", Endpoint: "http://calc.local", Description: "arithmetic"})

	eng := workflow.New(workers, workflow.WithClientFactory(func(string) workflow.ToolCaller {
		return fakeToolCaller{result: json.RawMessage(`5`)}
	}))

	models, err := config.New(filepath.Join(dir, "models.yaml"), model.NewRegistry())
	require.NoError(t, err)

	agentLookup := func(string) (agent.Definition, bool) { return agent.Definition{}, false }
	teamRuntime := team.New(fakeAgentRunner{}, agentLookup)
	agentRuntime := agent.New(workers, fixedResolver{})

	srv := httpapi.New(httpapi.Dirs{
		AgentDefinitions: filepath.Join(dir, "agent-definitions"),
		AgentTeams:       filepath.Join(dir, "agent-teams"),
		WorkflowsUser:    filepath.Join(dir, "workflows", "user"),
	},
		httpapi.WithWorkers(workers),
		httpapi.WithEngine(eng),
		httpapi.WithAgents(agentRuntime),
		httpapi.WithTeams(teamRuntime),
		httpapi.WithModels(models),
	)
	return httptest.NewServer(srv.Router())
}

type fakeToolCaller struct {
	result json.RawMessage
}

func (f fakeToolCaller) CallTool(context.Context, string, json.RawMessage) (json.RawMessage, error) {
	return f.result, nil
}

type fakeAgentRunner struct{}

func (fakeAgentRunner) Run(_ context.Context, ec *session.ExecutionContext, def agent.Definition, msg string, _ []*model.Message) (*agent.Result, error) {
	return &agent.Result{FinalText: "reply: " + msg}, nil
}

type fixedResolver struct{}

func (fixedResolver) ResolveClient(context.Context, agent.Definition) (model.Client, error) {
	return nil, nil
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, body := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestListWorkers(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/mcp/servers")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workers []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workers))
	require.Len(t, workers, 1)
	assert.Equal(t, "calc", workers[0]["name"])
}

func TestExecuteWorkflow(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	wf := workflow.Workflow{
		Name: "flow",
		Nodes: []workflow.Node{
			{ID: "n1", Type: workflow.NodeTypeMCPCall, WorkerName: "calc", ToolName: "add"},
		},
	}
	resp, body := doJSON(t, srv, http.MethodPost, "/workflows/execute", wf)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])
}

func TestSaveListAndDeleteWorkflow(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	wf := workflow.Workflow{
		Name: "flow",
		Nodes: []workflow.Node{
			{ID: "n1", Type: workflow.NodeTypeMCPCall, WorkerName: "calc", ToolName: "add"},
		},
	}
	resp, _ := doJSON(t, srv, http.MethodPost, "/workflows", wf)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := srv.Client().Get(srv.URL + "/workflows")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved []workflow.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "flow", saved[0].Name)

	resp, _ = doJSON(t, srv, http.MethodDelete, "/workflows/flow", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodDelete, "/workflows/flow", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestRunTeam(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	// No team installed yet: expect 404.
	resp, body := doJSON(t, srv, http.MethodPost, "/teams/run", map[string]string{"team_id": "missing", "message": "hi"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["kind"])
}

func TestModelsCRUDAndDeleteDefaultFails(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	entry := map[string]any{"id": "claude", "driver": "anthropic-style", "is_default": true}
	resp, _ := doJSON(t, srv, http.MethodPost, "/models", entry)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodDelete, "/models/claude", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_argument", body["kind"])
}
