package worker

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/atlasrun/orchestrator/errs"
)

// schemaCache compiles each tool's input_schema once and reuses it across
// calls. Workers rarely change their schema at runtime, and compiling a
// jsonschema.Schema is too expensive to redo on every tool invocation.
var schemaCache sync.Map // map[string]*jsonschema.Schema, keyed by raw schema bytes

// ValidateArguments checks call arguments against a tool's declared JSON
// Schema before the call reaches the worker. A tool with no input_schema is
// left unchecked — not every worker publishes one.
func ValidateArguments(tool ToolSchema, arguments json.RawMessage) error {
	if len(tool.InputSchema) == 0 {
		return nil
	}

	schema, err := compiledSchema(tool.Name, tool.InputSchema)
	if err != nil {
		return errs.Wrap(errs.KindInvalidArgument, "worker", fmt.Errorf("compile schema for tool %q: %w", tool.Name, err))
	}

	var argsDoc any
	if len(arguments) == 0 {
		arguments = json.RawMessage("{}")
	}
	if err := json.Unmarshal(arguments, &argsDoc); err != nil {
		return errs.Wrap(errs.KindInvalidArgument, "worker", fmt.Errorf("unmarshal arguments for tool %q: %w", tool.Name, err))
	}

	if err := schema.Validate(argsDoc); err != nil {
		return errs.Wrap(errs.KindInvalidArgument, "worker", fmt.Errorf("arguments for tool %q: %w", tool.Name, err))
	}
	return nil
}

func compiledSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(string(raw)); ok {
		return cached.(*jsonschema.Schema), nil
	}

	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	resourceName := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceName, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	schemaCache.Store(string(raw), schema)
	return schema, nil
}
