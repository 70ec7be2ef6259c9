// Package model defines the provider-agnostic message and request/response
// types shared by every model_driver adapter (model/anthropic, model/openai,
// model/bedrock). It is deliberately smaller than a general-purpose
// multimodal chat type system: callers in this orchestrator only ever need
// text, tool-use, and tool-result content plus provider-issued reasoning.
package model

import (
	"context"
	"encoding/json"
	"errors"
)

// ConversationRole is the role for a message in a conversation.
type ConversationRole string

const (
	ConversationRoleSystem    ConversationRole = "system"
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

type (
	// Part is a marker interface implemented by every message content block.
	Part interface {
		isPart()
	}

	// TextPart is a plain text content block.
	TextPart struct {
		Text string
	}

	// ThinkingPart carries provider-issued reasoning content. Callers treat it
	// as opaque metadata; UI policy decides whether to surface it.
	ThinkingPart struct {
		Text      string
		Signature string
		Final     bool
	}

	// ToolUsePart declares a tool invocation requested by the assistant.
	ToolUsePart struct {
		ID    string
		Name  string
		Input any
	}

	// ToolResultPart carries a tool result supplied back to the model.
	ToolResultPart struct {
		ToolUseID string
		Content   any
		IsError   bool
	}

	// Message is a single chat message: an ordered set of typed parts plus
	// optional free-form metadata.
	Message struct {
		Role  ConversationRole
		Parts []Part
		Meta  map[string]any
	}

	// ToolDefinition describes a tool exposed to the model.
	ToolDefinition struct {
		Name        string
		Description string
		InputSchema any
	}

	// ToolCall is a tool invocation requested by the model, with canonical
	// JSON arguments. Provider adapters populate Payload as valid JSON;
	// callers never need to re-serialize it.
	ToolCall struct {
		Name    string
		Payload json.RawMessage
		ID      string
	}

	// ToolChoiceMode controls how the model is allowed to use tools.
	ToolChoiceMode string

	// ToolChoice configures tool-use behavior for a Request. Nil means
	// provider-default (typically auto).
	ToolChoice struct {
		Mode ToolChoiceMode
		Name string
	}

	// TokenUsage tracks token counts for a single model call.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// ThinkingOptions configures provider reasoning behavior.
	ThinkingOptions struct {
		Enable       bool
		BudgetTokens int
	}

	// Request captures the inputs for one model invocation.
	Request struct {
		RunID       string
		Model       string
		ModelClass  ModelClass
		Messages    []*Message
		Temperature float32
		Tools       []*ToolDefinition
		ToolChoice  *ToolChoice
		MaxTokens   int
		Stream      bool
		Thinking    *ThinkingOptions
	}

	// Response is the result of a non-streaming invocation.
	Response struct {
		Content    []Message
		ToolCalls  []ToolCall
		Usage      TokenUsage
		StopReason string
	}

	// Chunk is a single streaming event.
	Chunk struct {
		Type       string
		Message    *Message
		ToolCall   *ToolCall
		UsageDelta *TokenUsage
		StopReason string
	}

	// ModelClass identifies a model family a provider maps to a concrete
	// model identifier.
	ModelClass string

	// Client is the provider-agnostic model client every model_driver
	// implements.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
		Stream(ctx context.Context, req *Request) (Streamer, error)
	}

	// Streamer delivers incremental model output. Callers drain Recv until it
	// returns io.EOF or a terminal error, then call Close.
	Streamer interface {
		Recv() (Chunk, error)
		Close() error
		Metadata() map[string]any
	}
)

const (
	ToolChoiceModeAuto ToolChoiceMode = "auto"
	ToolChoiceModeNone ToolChoiceMode = "none"
	ToolChoiceModeAny  ToolChoiceMode = "any"
	ToolChoiceModeTool ToolChoiceMode = "tool"
)

const (
	ChunkTypeText     = "text"
	ChunkTypeToolCall = "tool_call"
	ChunkTypeThinking = "thinking"
	ChunkTypeUsage    = "usage"
	ChunkTypeStop     = "stop"
)

const (
	ModelClassHighReasoning ModelClass = "high-reasoning"
	ModelClassDefault       ModelClass = "default"
	ModelClassSmall         ModelClass = "small"
)

// ErrStreamingUnsupported indicates the provider adapter does not implement
// streaming for this driver.
var ErrStreamingUnsupported = errors.New("model: streaming not supported")

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Callers must not retry in a tight loop.
var ErrRateLimited = errors.New("model: rate limited")

func (TextPart) isPart()       {}
func (ThinkingPart) isPart()   {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}
