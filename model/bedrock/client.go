// Package bedrock implements model.Client over the AWS Bedrock Converse API
// using github.com/aws/aws-sdk-go-v2/service/bedrockruntime. It is the third
// model_driver the orchestrator's model registry supports, added per
// SPEC_FULL.md's DOMAIN STACK to exercise the AWS SDK dependencies the
// teacher also carries.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/atlasrun/orchestrator/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client the
// adapter uses, matching *bedrockruntime.Client so tests can substitute a
// fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the adapter's default model selection and sampling.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float32
}

// New builds a Bedrock-backed model client from an existing runtime client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{
		runtime:      opts.Runtime,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey satisfies model.Factory. Bedrock authenticates via the AWS
// default credential chain rather than a single API key, so apiKey is
// ignored; it is still accepted for interface symmetry with the other
// drivers and left empty by callers that configure this driver.
func NewFromAPIKey(_ string, defaultModel, highModel, smallModel string) (model.Client, error) {
	cfg, err := loadAWSConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}
	return New(Options{
		Runtime:      bedrockruntime.NewFromConfig(cfg),
		DefaultModel: defaultModel,
		HighModel:    highModel,
		SmallModel:   smallModel,
		MaxTokens:    4096,
	})
}

// Complete issues a Converse request and translates the response into
// common Message/ToolCall structures.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	parts, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(parts.modelID),
		Messages: parts.messages,
		System:   parts.system,
	}
	if parts.toolConfig != nil {
		input.ToolConfig = parts.toolConfig
	}
	inferCfg := &brtypes.InferenceConfiguration{}
	if t := c.effectiveTemperature(req.Temperature); t > 0 {
		inferCfg.Temperature = aws.Float32(t)
	}
	if mt := c.effectiveMaxTokens(req.MaxTokens); mt > 0 {
		inferCfg.MaxTokens = aws.Int32(int32(mt))
	}
	input.InferenceConfig = inferCfg

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isThrottled(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateResponse(out, parts.sanToCanon)
}

// isThrottled reports whether err is Bedrock's own throttling signal,
// distinct from the generic service errors Converse can also return.
func isThrottled(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	return false
}

// Stream is not implemented by this adapter; ConverseStream requires
// consuming an event-stream reader that adds little beyond what Complete
// already exercises for this orchestrator's needs.
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

type requestParts struct {
	modelID    string
	messages   []brtypes.Message
	system     []brtypes.SystemContentBlock
	toolConfig *brtypes.ToolConfiguration
	sanToCanon map[string]string
}

func (c *Client) prepareRequest(req *model.Request) (*requestParts, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, errors.New("bedrock: model identifier is required")
	}
	toolConfig, sanToCanon, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}
	messages, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	return &requestParts{
		modelID:    modelID,
		messages:   messages,
		system:     system,
		toolConfig: toolConfig,
		sanToCanon: sanToCanon,
	}, nil
}

func (c *Client) resolveModelID(req *model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case model.ModelClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case model.ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func (c *Client) effectiveMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return c.maxTok
}

func (c *Client) effectiveTemperature(requested float32) float32 {
	if requested > 0 {
		return requested
	}
	return c.temp
}

func encodeMessages(msgs []*model.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	var system []brtypes.SystemContentBlock

	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == model.ConversationRoleSystem {
			for _, p := range m.Parts {
				if t, ok := p.(model.TextPart); ok && t.Text != "" {
					system = append(system, &brtypes.SystemContentBlockMemberText{Value: t.Text})
				}
			}
			continue
		}
		var blocks []brtypes.ContentBlock
		for _, p := range m.Parts {
			switch v := p.(type) {
			case model.TextPart:
				if v.Text != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
				}
			case model.ToolUsePart:
				input, err := encodeDocument(v.Input)
				if err != nil {
					return nil, nil, fmt.Errorf("bedrock: encode tool_use %s input: %w", v.Name, err)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(v.ID),
						Name:      aws.String(v.Name),
						Input:     input,
					},
				})
			case model.ToolResultPart:
				status := brtypes.ToolResultStatusSuccess
				if v.IsError {
					status = brtypes.ToolResultStatusError
				}
				content, err := encodeDocument(v.Content)
				if err != nil {
					return nil, nil, fmt.Errorf("bedrock: encode tool_result %s content: %w", v.ToolUseID, err)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(v.ToolUseID),
						Status:    status,
						Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberJson{Value: content}},
					},
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == model.ConversationRoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		conversation = append(conversation, brtypes.Message{Role: role, Content: blocks})
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("bedrock: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func encodeDocument(v any) (document.Interface, error) {
	if v == nil {
		empty := map[string]any{}
		return document.NewLazyDocument(&empty), nil
	}
	return document.NewLazyDocument(&v), nil
}

func encodeTools(defs []*model.ToolDefinition) (*brtypes.ToolConfiguration, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil
	}
	sanToCanon := make(map[string]string, len(defs))
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		schemaDoc, err := encodeDocument(def.InputSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("bedrock: tool %s schema: %w", def.Name, err)
		}
		sanToCanon[def.Name] = def.Name
		tools = append(tools, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(def.Name),
				Description: aws.String(def.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: schemaDoc},
			},
		})
	}
	if len(tools) == 0 {
		return nil, nil, nil
	}
	return &brtypes.ToolConfiguration{Tools: tools}, sanToCanon, nil
}

func translateResponse(out *bedrockruntime.ConverseOutput, sanToCanon map[string]string) (*model.Response, error) {
	if out == nil || out.Output == nil {
		return nil, errors.New("bedrock: converse output is empty")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock: unexpected converse output type")
	}
	resp := &model.Response{}
	for _, block := range msgOut.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			if v.Value == "" {
				continue
			}
			resp.Content = append(resp.Content, model.Message{
				Role:  model.ConversationRoleAssistant,
				Parts: []model.Part{model.TextPart{Text: v.Value}},
			})
		case *brtypes.ContentBlockMemberToolUse:
			name := aws.ToString(v.Value.Name)
			if canonical, ok := sanToCanon[name]; ok {
				name = canonical
			}
			payload := decodeDocument(v.Value.Input)
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				Name:    name,
				Payload: payload,
				ID:      aws.ToString(v.Value.ToolUseId),
			})
		}
	}
	if u := out.Usage; u != nil {
		resp.Usage = model.TokenUsage{
			InputTokens:  int(aws.ToInt32(u.InputTokens)),
			OutputTokens: int(aws.ToInt32(u.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(u.TotalTokens)),
		}
	}
	resp.StopReason = string(out.StopReason)
	return resp, nil
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}
