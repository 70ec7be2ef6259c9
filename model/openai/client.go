// Package openai implements model.Client over the OpenAI Chat Completions
// API using github.com/sashabaranov/go-openai. It is the openai-style
// model_driver named in the orchestrator's model registry, shipped in full
// per the decision recorded in DESIGN.md rather than guarded behind a
// capability flag.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atlasrun/orchestrator/model"
)

// ChatClient captures the subset of the go-openai client used by the
// adapter, so tests can substitute a stub.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures the adapter's default model selection.
type Options struct {
	Client       ChatClient
	DefaultModel string
	HighModel    string
	SmallModel   string
}

// Client implements model.Client via the OpenAI Chat Completions API.
type Client struct {
	chat       ChatClient
	defaultMdl string
	highMdl    string
	smallMdl   string
}

// New builds an OpenAI-backed model client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai: client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{
		chat:       opts.Client,
		defaultMdl: modelID,
		highMdl:    strings.TrimSpace(opts.HighModel),
		smallMdl:   strings.TrimSpace(opts.SmallModel),
	}, nil
}

// NewFromAPIKey constructs a client using the default go-openai HTTP client,
// satisfying model.Factory for registration with model.Registry.
func NewFromAPIKey(apiKey, defaultModel, highModel, smallModel string) (model.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	return New(Options{
		Client:       openai.NewClient(apiKey),
		DefaultModel: defaultModel,
		HighModel:    highModel,
		SmallModel:   smallModel,
	})
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := c.resolveModelID(req)
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	tools, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}
	request := openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Tools:       tools,
	}
	if choice := encodeToolChoice(req.ToolChoice); choice != nil {
		request.ToolChoice = choice
	}
	resp, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

// Stream reports that OpenAI Chat Completions streaming is not implemented
// by this adapter (spec Open Question 2: ship the driver fully for
// non-streaming calls, fall back to Complete for streaming sessions).
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func (c *Client) resolveModelID(req *model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case model.ModelClassHighReasoning:
		if c.highMdl != "" {
			return c.highMdl
		}
	case model.ModelClassSmall:
		if c.smallMdl != "" {
			return c.smallMdl
		}
	}
	return c.defaultMdl
}

func encodeMessages(msgs []*model.Message) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case model.ConversationRoleSystem:
			if text := flattenText(m); text != "" {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: text})
			}
		case model.ConversationRoleUser:
			for _, p := range m.Parts {
				if result, ok := p.(model.ToolResultPart); ok {
					out = append(out, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    stringifyToolContent(result.Content),
						ToolCallID: result.ToolUseID,
					})
				}
			}
			if text := flattenText(m); text != "" {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
			}
		case model.ConversationRoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			if text := flattenText(m); text != "" {
				msg.Content = text
			}
			for _, p := range m.Parts {
				if use, ok := p.(model.ToolUsePart); ok {
					args, err := json.Marshal(use.Input)
					if err != nil {
						return nil, fmt.Errorf("openai: encode tool_use %s arguments: %w", use.Name, err)
					}
					msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
						ID:   use.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      use.Name,
							Arguments: string(args),
						},
					})
				}
			}
			if msg.Content != "" || len(msg.ToolCalls) > 0 {
				out = append(out, msg)
			}
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openai: at least one encodable message is required")
	}
	return out, nil
}

func flattenText(m *model.Message) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(model.TextPart); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

func stringifyToolContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func encodeTools(defs []*model.ToolDefinition) ([]openai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		params, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("openai: marshal tool %s schema: %w", def.Name, err)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}
	return tools, nil
}

func encodeToolChoice(choice *model.ToolChoice) any {
	if choice == nil {
		return nil
	}
	switch choice.Mode {
	case model.ToolChoiceModeNone:
		return "none"
	case model.ToolChoiceModeAny:
		return "required"
	case model.ToolChoiceModeTool:
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: choice.Name},
		}
	default:
		return "auto"
	}
}

func translateResponse(resp openai.ChatCompletionResponse) *model.Response {
	out := &model.Response{}
	for _, choice := range resp.Choices {
		msg := choice.Message
		if strings.TrimSpace(msg.Content) != "" {
			out.Content = append(out.Content, model.Message{
				Role:  model.ConversationRoleAssistant,
				Parts: []model.Part{model.TextPart{Text: msg.Content}},
			})
		}
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:    call.Function.Name,
				Payload: parseToolArguments(call.Function.Arguments),
				ID:      call.ID,
			})
		}
	}
	out.Usage = model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if len(resp.Choices) > 0 {
		out.StopReason = string(resp.Choices[0].FinishReason)
	}
	return out
}

func parseToolArguments(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if !json.Valid([]byte(trimmed)) {
		data, _ := json.Marshal(map[string]any{"raw": trimmed})
		return data
	}
	return json.RawMessage(trimmed)
}
