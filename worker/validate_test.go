package worker_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/worker"
)

func TestValidateArgumentsNoSchema(t *testing.T) {
	tool := worker.ToolSchema{Name: "noop"}
	err := worker.ValidateArguments(tool, json.RawMessage(`{"anything":1}`))
	assert.NoError(t, err)
}

func TestValidateArgumentsOK(t *testing.T) {
	tool := worker.ToolSchema{
		Name:        "add",
		InputSchema: json.RawMessage(`{"type":"object","required":["a","b"],"properties":{"a":{"type":"number"},"b":{"type":"number"}}}`),
	}
	err := worker.ValidateArguments(tool, json.RawMessage(`{"a":1,"b":2}`))
	assert.NoError(t, err)
}

func TestValidateArgumentsRejectsMissingRequired(t *testing.T) {
	tool := worker.ToolSchema{
		Name:        "add",
		InputSchema: json.RawMessage(`{"type":"object","required":["a","b"],"properties":{"a":{"type":"number"},"b":{"type":"number"}}}`),
	}
	err := worker.ValidateArguments(tool, json.RawMessage(`{"a":1}`))
	require.Error(t, err)
	e, ok := errs.Of(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidArgument, e.Kind())
}

func TestValidateArgumentsRejectsWrongType(t *testing.T) {
	tool := worker.ToolSchema{
		Name:        "add",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"}}}`),
	}
	err := worker.ValidateArguments(tool, json.RawMessage(`{"a":"not a number"}`))
	require.Error(t, err)
}

func TestValidateArgumentsCachesCompiledSchema(t *testing.T) {
	tool := worker.ToolSchema{
		Name:        "add",
		InputSchema: json.RawMessage(`{"type":"object","required":["a"]}`),
	}
	require.NoError(t, worker.ValidateArguments(tool, json.RawMessage(`{"a":1}`)))
	require.NoError(t, worker.ValidateArguments(tool, json.RawMessage(`{"a":2}`)))
}
