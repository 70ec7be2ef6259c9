package session

import "encoding/json"

// EventType discriminates the wire JSON of every streaming event via a
// "type" field, matching the client-facing contract bit-exactly.
type EventType string

const (
	EventExecutionStarted EventType = "execution_started"
	EventStatus           EventType = "status"
	EventNodeState        EventType = "node_state"
	EventAgentIteration   EventType = "agent_iteration"
	EventToolExecution    EventType = "tool_execution"
	EventAgentComplete    EventType = "agent_complete"
	EventComplete         EventType = "complete"
	EventCancelled        EventType = "cancelled"
	EventError            EventType = "error"
)

// Event is implemented by every concrete event struct below. MarshalJSON on
// each concrete type embeds the "type" discriminator alongside its payload
// fields, so the wire format is a single flat object rather than a nested
// envelope.
type Event interface {
	eventType() EventType
}

// NodeStatus mirrors the five-state NodeExecution lifecycle.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// ExecutionStarted is the first event of every run.
type ExecutionStarted struct {
	ExecutionID string `json:"execution_id"`
}

func (ExecutionStarted) eventType() EventType { return EventExecutionStarted }

// MarshalJSON implements Event's wire envelope.
func (e ExecutionStarted) MarshalJSON() ([]byte, error) {
	type alias ExecutionStarted
	return marshalTagged(EventExecutionStarted, alias(e))
}

// Status carries a free-form human-readable progress message.
type Status struct {
	Message string `json:"message"`
}

func (Status) eventType() EventType { return EventStatus }

// MarshalJSON implements Event's wire envelope.
func (e Status) MarshalJSON() ([]byte, error) {
	type alias Status
	return marshalTagged(EventStatus, alias(e))
}

// NodeState reports a WorkflowNode's lifecycle transition.
type NodeState struct {
	NodeID string          `json:"node_id"`
	Status NodeStatus      `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (NodeState) eventType() EventType { return EventNodeState }

// MarshalJSON implements Event's wire envelope.
func (e NodeState) MarshalJSON() ([]byte, error) {
	type alias NodeState
	return marshalTagged(EventNodeState, alias(e))
}

// ToolsUsed names one tool invoked during an agent iteration.
type ToolsUsed struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// TokenUsage mirrors model.TokenUsage's wire shape.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// AgentIteration reports one AgentRuntime loop turn.
type AgentIteration struct {
	Iteration     int         `json:"iteration"`
	MaxIterations int         `json:"max_iterations"`
	StopReason    string      `json:"stop_reason"`
	TokenUsage    TokenUsage  `json:"token_usage"`
	Model         string      `json:"model"`
	ToolsUsed     []ToolsUsed `json:"tools_used"`
}

func (AgentIteration) eventType() EventType { return EventAgentIteration }

// MarshalJSON implements Event's wire envelope.
func (e AgentIteration) MarshalJSON() ([]byte, error) {
	type alias AgentIteration
	return marshalTagged(EventAgentIteration, alias(e))
}

// ToolExecution reports one worker tool call made during an agent iteration.
type ToolExecution struct {
	Worker  string `json:"worker"`
	Tool    string `json:"tool"`
	Summary string `json:"summary"`
}

func (ToolExecution) eventType() EventType { return EventToolExecution }

// MarshalJSON implements Event's wire envelope.
func (e ToolExecution) MarshalJSON() ([]byte, error) {
	type alias ToolExecution
	return marshalTagged(EventToolExecution, alias(e))
}

// AgentComplete terminates one AgentRuntime (or TeamRuntime member) turn.
type AgentComplete struct {
	FinalText            string `json:"final_text"`
	MaxIterationsExceeded bool  `json:"max_iterations_exceeded,omitempty"`
	ExecutionCancelled    bool  `json:"execution_cancelled,omitempty"`
}

func (AgentComplete) eventType() EventType { return EventAgentComplete }

// MarshalJSON implements Event's wire envelope.
func (e AgentComplete) MarshalJSON() ([]byte, error) {
	type alias AgentComplete
	return marshalTagged(EventAgentComplete, alias(e))
}

// Complete is the terminal success event of a run.
type Complete struct {
	Result json.RawMessage `json:"result"`
}

func (Complete) eventType() EventType { return EventComplete }

// MarshalJSON implements Event's wire envelope.
func (e Complete) MarshalJSON() ([]byte, error) {
	type alias Complete
	return marshalTagged(EventComplete, alias(e))
}

// Cancelled is the terminal event emitted after a cancel_execution control
// message takes effect.
type Cancelled struct{}

func (Cancelled) eventType() EventType { return EventCancelled }

// MarshalJSON implements Event's wire envelope.
func (e Cancelled) MarshalJSON() ([]byte, error) {
	type alias Cancelled
	return marshalTagged(EventCancelled, alias(e))
}

// Error is the terminal event emitted on internal failure.
type Error struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func (Error) eventType() EventType { return EventError }

// MarshalJSON implements Event's wire envelope.
func (e Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return marshalTagged(EventError, alias(e))
}

// marshalTagged serializes payload's fields alongside a top-level "type"
// discriminator, producing a single flat object rather than a nested
// envelope. payload must be a type with no custom MarshalJSON (callers pass
// a local "type alias" copy of the concrete event to avoid recursing back
// into their own MarshalJSON).
func marshalTagged(t EventType, payload any) ([]byte, error) {
	fields, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, err
	}
	typeJSON, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	m["type"] = typeJSON
	return json.Marshal(m)
}

// Annotated wraps an inner Event with the emitting agent's id and a stable
// color index, for TeamRuntime's event relay. The wire shape is the inner
// event's own fields plus agent_id/color — the event's "type" is unchanged,
// matching the spec's "forwards all AgentRuntime events unchanged,
// annotated with..." contract.
type Annotated struct {
	Inner   Event
	AgentID string
	Color   int
}

func (a Annotated) eventType() EventType { return a.Inner.eventType() }

// MarshalJSON merges agent_id/color into the inner event's own JSON object.
func (a Annotated) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(a.Inner)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(inner, &m); err != nil {
		return nil, err
	}
	agentID, err := json.Marshal(a.AgentID)
	if err != nil {
		return nil, err
	}
	color, err := json.Marshal(a.Color)
	if err != nil {
		return nil, err
	}
	m["agent_id"] = agentID
	m["color"] = color
	return json.Marshal(m)
}
