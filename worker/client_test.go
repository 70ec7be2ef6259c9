package worker_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/worker"
)

func TestClientListTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/list_tools", r.URL.Path)
		_, _ = w.Write([]byte(`{"tools":[{"name":"add","description":"adds","input_schema":{"type":"object"}}]}`))
	}))
	defer srv.Close()

	c := worker.New(srv.URL, worker.Options{})
	tools, err := c.ListTools(t.Context())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "add", tools[0].Name)
}

func TestClientListToolsUnreachable(t *testing.T) {
	c := worker.New("http://127.0.0.1:1", worker.Options{})
	_, err := c.ListTools(t.Context())
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindWorkerUnreachable, e.Kind())
}

func TestClientCallToolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := worker.New(srv.URL, worker.Options{})
	_, err := c.CallTool(t.Context(), "add", json.RawMessage(`{"a":1,"b":2}`))
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindToolError, e.Kind())
	assert.Contains(t, e.Message(), "boom")
}

func TestClientCallToolProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := worker.New(srv.URL, worker.Options{})
	_, err := c.CallTool(t.Context(), "add", json.RawMessage(`{}`))
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindWorkerProtocolError, e.Kind())
}

func TestClientCallToolSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sum":3}`))
	}))
	defer srv.Close()

	c := worker.New(srv.URL, worker.Options{})
	out, err := c.CallTool(t.Context(), "add", json.RawMessage(`{"a":1,"b":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":3}`, string(out))
}
