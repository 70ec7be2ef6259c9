// Package worker implements a typed HTTP client to one worker: list_tools,
// call_tool, and health. A worker is a black box to this client — arguments
// and results pass through unchanged so workers can evolve their own schemas
// without orchestrator changes.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/atlasrun/orchestrator/errs"
)

// DefaultCallTimeout is long enough for the slowest real tools (vulnerability
// scans and the like).
const DefaultCallTimeout = 600 * time.Second

// ToolSchema describes one callable operation a worker advertises.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Options configures a Client.
type Options struct {
	HTTPClient  *http.Client
	CallTimeout time.Duration
}

// Client is a typed HTTP client to one worker's list_tools/call_tool surface.
type Client struct {
	endpoint    string
	http        *http.Client
	callTimeout time.Duration
}

// New builds a Client for the worker reachable at endpoint (a base URL).
func New(endpoint string, opts Options) *Client {
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: callTimeout}
	}
	return &Client{endpoint: endpoint, http: httpClient, callTimeout: callTimeout}
}

// Endpoint returns the worker's base URL.
func (c *Client) Endpoint() string { return c.endpoint }

type listToolsResponse struct {
	Tools []ToolSchema `json:"tools"`
}

// ListTools fetches the worker's current tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/list_tools", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	req.Header.Set("Content-Type", "application/json")
	injectTraceHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	if resp.StatusCode >= 400 {
		return nil, errs.New(errs.KindWorkerProtocolError, "worker", fmt.Sprintf("list_tools status %d: %s", resp.StatusCode, string(body)), nil)
	}
	var out listToolsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Wrap(errs.KindWorkerProtocolError, "worker", err)
	}
	return out.Tools, nil
}

type callToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CallTool invokes a tool by name with the given JSON arguments, returning
// the worker's result as a raw JSON value. The client never interprets
// arguments or results beyond JSON encoding/decoding.
func (c *Client) CallTool(ctx context.Context, toolName string, arguments json.RawMessage) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if arguments == nil {
		arguments = json.RawMessage("{}")
	}
	body, err := json.Marshal(callToolRequest{Name: toolName, Arguments: arguments})
	if err != nil {
		return nil, errs.Wrap(errs.KindToolError, "worker", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/call_tool", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	req.Header.Set("Content-Type", "application/json")
	injectTraceHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	if resp.StatusCode >= 400 {
		return nil, errs.New(errs.KindToolError, "worker", string(respBody), nil)
	}
	if !json.Valid(respBody) {
		return nil, errs.New(errs.KindWorkerProtocolError, "worker", "call_tool response is not valid JSON", nil)
	}
	return json.RawMessage(respBody), nil
}

// Health performs a lightweight reachability check, used by WorkerRegistry
// at startup refresh time.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindWorkerUnreachable, "worker", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return errs.New(errs.KindWorkerUnreachable, "worker", fmt.Sprintf("health status %d", resp.StatusCode), nil)
	}
	return nil
}

func injectTraceHeaders(ctx context.Context, header http.Header) {
	if ctx == nil || header == nil {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}
