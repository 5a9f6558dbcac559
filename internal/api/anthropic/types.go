// Package anthropic defines the Anthropic-style Messages API wire types.
package anthropic

import (
	"encoding/json"
	"fmt"
)

// MessagesRequest is the inbound/outbound request shape.
type MessagesRequest struct {
	Model       string            `json:"model"`
	System      SystemPrompt      `json:"system,omitempty"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Tools       []Tool            `json:"tools,omitempty"`
	Thinking    *Thinking         `json:"thinking,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
	Type        string `json:"type,omitempty"` // set for built-ins like web_search
}

// SystemPrompt accepts a plain string or an array of text blocks.
type SystemPrompt string

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SystemPrompt(str)
		return nil
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("system must be a string or array of text blocks: %w", err)
	}
	var out string
	for _, b := range blocks {
		out += b.Text
	}
	*s = SystemPrompt(out)
	return nil
}

type Message struct {
	Role    string      `json:"role"`
	Content ContentList `json:"content"`
}

// ContentBlock is one typed block in message or response content.
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *ImageSource `json:"source,omitempty"`

	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ContentList accepts the string shortcut or the block-array form.
type ContentList []ContentBlock

func (c *ContentList) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*c = ContentList{{Type: "text", Text: str}}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content must be a string or array of blocks: %w", err)
	}
	for i := range blocks {
		if blocks[i].Type == "" {
			blocks[i].Type = "text"
		}
	}
	*c = blocks
	return nil
}

// MessagesResponse is the non-streaming response shape.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      Usage          `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent is the envelope for every SSE data payload; the type field
// selects which member is populated.
type StreamEvent struct {
	Type string `json:"type"`

	Message *MessagesResponse `json:"message,omitempty"` // message_start

	Index        int           `json:"index,omitempty"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"` // content_block_start

	Delta *StreamDelta `json:"delta,omitempty"` // content_block_delta, message_delta
	Usage *Usage       `json:"usage,omitempty"` // message_delta

	Error *ErrorBody `json:"error,omitempty"` // error
}

type StreamDelta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// ErrorResponse is the error body shape.
type ErrorResponse struct {
	Type  string    `json:"type"` // "error"
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
