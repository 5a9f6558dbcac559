// Package anthropic implements the Anthropic-style framing codec.
package anthropic

import (
	"encoding/json"
	"fmt"

	apianthropic "github.com/helmgate/helmgate/internal/api/anthropic"
	"github.com/helmgate/helmgate/internal/codec"
	"github.com/helmgate/helmgate/internal/domain"
)

// Codec converts Anthropic Messages API payloads to and from the canonical
// model.
type Codec struct{}

// New returns the Anthropic codec.
func New() *Codec { return &Codec{} }

func (c *Codec) Name() string { return "anthropic" }

// DecodeRequest converts an Anthropic request body to canonical form.
func (c *Codec) DecodeRequest(data []byte) (*domain.Request, error) {
	var apiReq apianthropic.MessagesRequest
	if err := json.Unmarshal(data, &apiReq); err != nil {
		return nil, fmt.Errorf("decode anthropic request: %w", err)
	}

	req := &domain.Request{
		Model:       apiReq.Model,
		System:      string(apiReq.System),
		MaxTokens:   apiReq.MaxTokens,
		Temperature: apiReq.Temperature,
		Stream:      apiReq.Stream,
		Metadata:    apiReq.Metadata,
	}
	if apiReq.Thinking != nil {
		req.Thinking = &domain.ThinkingOption{
			Type:         apiReq.Thinking.Type,
			BudgetTokens: apiReq.Thinking.BudgetTokens,
		}
	}

	for _, m := range apiReq.Messages {
		req.Messages = append(req.Messages, decodeMessage(m))
	}

	for _, t := range apiReq.Tools {
		if t.Type != "" && t.Name == "web_search" {
			req.WebSearch = true
			continue
		}
		req.Tools = append(req.Tools, domain.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}

	return req, nil
}

func decodeMessage(m apianthropic.Message) domain.Message {
	msg := domain.Message{Role: m.Role}

	if len(m.Content) == 1 && m.Content[0].Type == "text" {
		msg.Content = domain.NewTextContent(m.Content[0].Text)
		return msg
	}

	parts := make([]domain.ContentPart, 0, len(m.Content))
	for _, b := range m.Content {
		parts = append(parts, decodeBlock(b))
	}
	msg.Content = domain.NewPartsContent(parts...)
	return msg
}

func decodeBlock(b apianthropic.ContentBlock) domain.ContentPart {
	switch b.Type {
	case "image":
		p := domain.ContentPart{Type: domain.ContentTypeImage}
		if b.Source != nil {
			p.Source = &domain.ImageSource{
				Type:      b.Source.Type,
				MediaType: b.Source.MediaType,
				Data:      b.Source.Data,
				URL:       b.Source.URL,
			}
		}
		return p
	case "tool_use":
		return domain.ToolUsePart(b.ID, b.Name, b.Input)
	case "tool_result":
		return domain.ToolResultPart(b.ToolUseID, b.Content, b.IsError)
	default:
		return domain.TextPart(b.Text)
	}
}

// EncodeRequest converts a canonical request to an Anthropic request body.
func (c *Codec) EncodeRequest(req *domain.Request) ([]byte, error) {
	apiReq := &apianthropic.MessagesRequest{
		Model:       req.Model,
		System:      apianthropic.SystemPrompt(req.System),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
		Metadata:    req.Metadata,
	}
	if apiReq.MaxTokens == 0 {
		apiReq.MaxTokens = 4096
	}
	if req.Thinking != nil {
		apiReq.Thinking = &apianthropic.Thinking{
			Type:         req.Thinking.Type,
			BudgetTokens: req.Thinking.BudgetTokens,
		}
	}

	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, encodeMessage(msg))
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, apianthropic.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	return json.Marshal(apiReq)
}

func encodeMessage(msg domain.Message) apianthropic.Message {
	out := apianthropic.Message{Role: msg.Role}
	if msg.Content.IsSimpleText() {
		out.Content = apianthropic.ContentList{{Type: "text", Text: msg.Content.Text}}
		return out
	}
	for _, p := range msg.Content.Parts {
		out.Content = append(out.Content, encodeBlock(p))
	}
	return out
}

func encodeBlock(p domain.ContentPart) apianthropic.ContentBlock {
	switch p.Type {
	case domain.ContentTypeImage:
		b := apianthropic.ContentBlock{Type: "image"}
		if p.Source != nil {
			b.Source = &apianthropic.ImageSource{
				Type:      p.Source.Type,
				MediaType: p.Source.MediaType,
				Data:      p.Source.Data,
				URL:       p.Source.URL,
			}
		}
		return b
	case domain.ContentTypeToolUse:
		return apianthropic.ContentBlock{Type: "tool_use", ID: p.ID, Name: p.Name, Input: p.Input}
	case domain.ContentTypeToolResult:
		return apianthropic.ContentBlock{
			Type:      "tool_result",
			ToolUseID: p.ToolUseID,
			Content:   p.Content,
			IsError:   p.IsError,
		}
	default:
		return apianthropic.ContentBlock{Type: "text", Text: p.Text}
	}
}

// DecodeResponse converts an Anthropic response body to canonical form.
func (c *Codec) DecodeResponse(data []byte) (*domain.Response, error) {
	var apiResp apianthropic.MessagesResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	resp := &domain.Response{
		ID:         apiResp.ID,
		Model:      apiResp.Model,
		Role:       apiResp.Role,
		StopReason: apiResp.StopReason,
		Usage: domain.Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
	}
	if resp.Role == "" {
		resp.Role = domain.RoleAssistant
	}
	for _, b := range apiResp.Content {
		resp.Content = append(resp.Content, decodeBlock(b))
	}
	return resp, nil
}

// EncodeResponse converts a canonical response to an Anthropic response body.
func (c *Codec) EncodeResponse(resp *domain.Response) ([]byte, error) {
	apiResp := apianthropic.MessagesResponse{
		ID:         resp.ID,
		Type:       "message",
		Role:       domain.RoleAssistant,
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage: apianthropic.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, p := range resp.Content {
		apiResp.Content = append(apiResp.Content, encodeBlock(p))
	}
	if apiResp.Content == nil {
		apiResp.Content = []apianthropic.ContentBlock{}
	}
	return json.Marshal(apiResp)
}

// DecodeStreamChunk converts one Anthropic SSE data payload to a canonical
// event. Housekeeping event types return (nil, nil).
func (c *Codec) DecodeStreamChunk(data []byte) (*domain.StreamEvent, error) {
	var apiEv apianthropic.StreamEvent
	if err := json.Unmarshal(data, &apiEv); err != nil {
		return nil, fmt.Errorf("decode anthropic stream event: %w", err)
	}

	switch apiEv.Type {
	case "message_start":
		ev := &domain.StreamEvent{Role: domain.RoleAssistant}
		if apiEv.Message != nil {
			ev.Role = apiEv.Message.Role
			ev.Usage = &domain.Usage{
				InputTokens:  apiEv.Message.Usage.InputTokens,
				OutputTokens: apiEv.Message.Usage.OutputTokens,
			}
		}
		return ev, nil
	case "content_block_start":
		if apiEv.ContentBlock != nil && apiEv.ContentBlock.Type == "tool_use" {
			return &domain.StreamEvent{
				ToolCall: &domain.ToolCallDelta{
					Index: apiEv.Index,
					ID:    apiEv.ContentBlock.ID,
					Name:  apiEv.ContentBlock.Name,
				},
			}, nil
		}
		return nil, nil
	case "content_block_delta":
		if apiEv.Delta == nil {
			return nil, nil
		}
		if apiEv.Delta.Type == "input_json_delta" {
			return &domain.StreamEvent{
				ToolCall: &domain.ToolCallDelta{
					Index:     apiEv.Index,
					Arguments: apiEv.Delta.PartialJSON,
				},
			}, nil
		}
		return &domain.StreamEvent{ContentDelta: apiEv.Delta.Text}, nil
	case "message_delta":
		ev := &domain.StreamEvent{}
		if apiEv.Delta != nil {
			ev.StopReason = apiEv.Delta.StopReason
		}
		if apiEv.Usage != nil {
			ev.Usage = &domain.Usage{
				InputTokens:  apiEv.Usage.InputTokens,
				OutputTokens: apiEv.Usage.OutputTokens,
			}
		}
		return ev, nil
	case "error":
		msg := "upstream stream error"
		if apiEv.Error != nil {
			msg = apiEv.Error.Message
		}
		return &domain.StreamEvent{Error: fmt.Errorf("%s", msg)}, nil
	default:
		// ping, content_block_stop, message_stop
		return nil, nil
	}
}

// EncodeStreamStart opens the stream with message_start and the first
// content block.
func (c *Codec) EncodeStreamStart(meta *codec.StreamMetadata) []byte {
	msg := &apianthropic.MessagesResponse{
		Type:    "message",
		Role:    domain.RoleAssistant,
		Content: []apianthropic.ContentBlock{},
	}
	if meta != nil {
		msg.ID = meta.ID
		msg.Model = meta.Model
	}

	start, _ := json.Marshal(apianthropic.StreamEvent{Type: "message_start", Message: msg})
	blockStart, _ := json.Marshal(apianthropic.StreamEvent{
		Type:         "content_block_start",
		Index:        0,
		ContentBlock: &apianthropic.ContentBlock{Type: "text"},
	})

	out := codec.SSEFrame("message_start", start)
	out = append(out, codec.SSEFrame("content_block_start", blockStart)...)
	return out
}

// EncodeStreamChunk renders a canonical event as Anthropic SSE frames.
func (c *Codec) EncodeStreamChunk(ev *domain.StreamEvent, meta *codec.StreamMetadata) ([]byte, error) {
	var out []byte

	if ev.ContentDelta != "" {
		data, err := json.Marshal(apianthropic.StreamEvent{
			Type:  "content_block_delta",
			Index: 0,
			Delta: &apianthropic.StreamDelta{Type: "text_delta", Text: ev.ContentDelta},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, codec.SSEFrame("content_block_delta", data)...)
	}

	if ev.ToolCall != nil {
		if ev.ToolCall.Name != "" {
			data, err := json.Marshal(apianthropic.StreamEvent{
				Type:  "content_block_start",
				Index: ev.ToolCall.Index + 1,
				ContentBlock: &apianthropic.ContentBlock{
					Type: "tool_use",
					ID:   ev.ToolCall.ID,
					Name: ev.ToolCall.Name,
				},
			})
			if err != nil {
				return nil, err
			}
			out = append(out, codec.SSEFrame("content_block_start", data)...)
		}
		if ev.ToolCall.Arguments != "" {
			data, err := json.Marshal(apianthropic.StreamEvent{
				Type:  "content_block_delta",
				Index: ev.ToolCall.Index + 1,
				Delta: &apianthropic.StreamDelta{Type: "input_json_delta", PartialJSON: ev.ToolCall.Arguments},
			})
			if err != nil {
				return nil, err
			}
			out = append(out, codec.SSEFrame("content_block_delta", data)...)
		}
	}

	if ev.StopReason != "" || ev.Usage != nil {
		delta := apianthropic.StreamEvent{Type: "message_delta", Delta: &apianthropic.StreamDelta{}}
		if ev.StopReason != "" {
			delta.Delta.StopReason = ev.StopReason
		}
		if ev.Usage != nil {
			delta.Usage = &apianthropic.Usage{
				InputTokens:  ev.Usage.InputTokens,
				OutputTokens: ev.Usage.OutputTokens,
			}
		}
		data, err := json.Marshal(delta)
		if err != nil {
			return nil, err
		}
		out = append(out, codec.SSEFrame("message_delta", data)...)
	}

	return out, nil
}

// EncodeStreamEnd closes the open content block and the message.
func (c *Codec) EncodeStreamEnd(meta *codec.StreamMetadata) []byte {
	blockStop, _ := json.Marshal(apianthropic.StreamEvent{Type: "content_block_stop", Index: 0})
	stop, _ := json.Marshal(apianthropic.StreamEvent{Type: "message_stop"})

	out := codec.SSEFrame("content_block_stop", blockStop)
	out = append(out, codec.SSEFrame("message_stop", stop)...)
	return out
}

// EncodeStreamError renders an in-stream error frame.
func (c *Codec) EncodeStreamError(message string) []byte {
	data, _ := json.Marshal(apianthropic.StreamEvent{
		Type:  "error",
		Error: &apianthropic.ErrorBody{Type: "api_error", Message: message},
	})
	return codec.SSEFrame("error", data)
}

// EncodeError renders a client-facing error body.
func (c *Codec) EncodeError(status int, message string) []byte {
	errType := "api_error"
	if status >= 400 && status < 500 {
		errType = "invalid_request_error"
	}
	body, _ := json.Marshal(apianthropic.ErrorResponse{
		Type:  "error",
		Error: apianthropic.ErrorBody{Type: errType, Message: message},
	})
	return body
}

var _ codec.Codec = (*Codec)(nil)
