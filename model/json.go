package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MarshalJSON encodes a Message while preserving the concrete Part types
// stored in Parts via an explicit Kind discriminator, so round trips through
// JSON (session transcripts, saved workflow results) do not lose type
// information.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias struct {
		Role  ConversationRole `json:"Role"`
		Parts []any            `json:"Parts"`
		Meta  map[string]any   `json:"Meta"`
	}
	if len(m.Parts) == 0 {
		return json.Marshal(alias{Role: m.Role, Meta: m.Meta})
	}
	parts := make([]any, 0, len(m.Parts))
	for i, p := range m.Parts {
		enc, err := encodeMessagePart(p)
		if err != nil {
			return nil, fmt.Errorf("encode parts[%d]: %w", i, err)
		}
		parts = append(parts, enc)
	}
	return json.Marshal(alias{Role: m.Role, Parts: parts, Meta: m.Meta})
}

// UnmarshalJSON decodes a Message, materializing concrete Part
// implementations from the Kind discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role  ConversationRole  `json:"Role"`
		Parts []json.RawMessage `json:"Parts"`
		Meta  map[string]any    `json:"Meta"`
	}
	var tmp alias
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	m.Role = tmp.Role
	m.Meta = tmp.Meta
	if len(tmp.Parts) == 0 {
		m.Parts = nil
		return nil
	}
	m.Parts = make([]Part, 0, len(tmp.Parts))
	for i, raw := range tmp.Parts {
		part, err := decodeMessagePart(raw)
		if err != nil {
			return fmt.Errorf("decode parts[%d]: %w", i, err)
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

func encodeMessagePart(p Part) (any, error) {
	switch v := p.(type) {
	case TextPart:
		return struct {
			Kind string `json:"Kind"`
			TextPart
		}{Kind: "text", TextPart: v}, nil
	case ThinkingPart:
		return struct {
			Kind string `json:"Kind"`
			ThinkingPart
		}{Kind: "thinking", ThinkingPart: v}, nil
	case ToolUsePart:
		return struct {
			Kind string `json:"Kind"`
			ToolUsePart
		}{Kind: "tool_use", ToolUsePart: v}, nil
	case ToolResultPart:
		return struct {
			Kind string `json:"Kind"`
			ToolResultPart
		}{Kind: "tool_result", ToolResultPart: v}, nil
	default:
		return nil, fmt.Errorf("unknown part type %T", p)
	}
}

func decodeMessagePart(raw json.RawMessage) (Part, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode part object: %w", err)
	}
	if len(obj) == 0 {
		return nil, errors.New("empty part payload")
	}
	kindRaw, ok := obj["Kind"]
	if !ok {
		return nil, errors.New("part payload missing Kind discriminator")
	}
	var kind string
	if err := json.Unmarshal(kindRaw, &kind); err != nil {
		return nil, fmt.Errorf("decode Kind: %w", err)
	}
	switch kind {
	case "text":
		var text TextPart
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("decode TextPart: %w", err)
		}
		return text, nil
	case "thinking":
		var thinking ThinkingPart
		if err := json.Unmarshal(raw, &thinking); err != nil {
			return nil, fmt.Errorf("decode ThinkingPart: %w", err)
		}
		return thinking, nil
	case "tool_use":
		var use ToolUsePart
		if err := json.Unmarshal(raw, &use); err != nil {
			return nil, fmt.Errorf("decode ToolUsePart: %w", err)
		}
		if use.Name == "" {
			return nil, errors.New("ToolUsePart requires Name")
		}
		return use, nil
	case "tool_result":
		var result ToolResultPart
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decode ToolResultPart: %w", err)
		}
		if result.ToolUseID == "" {
			return nil, errors.New("ToolResultPart requires ToolUseID")
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unknown part kind %q", kind)
	}
}
