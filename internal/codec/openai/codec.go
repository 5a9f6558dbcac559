// Package openai implements the OpenAI-style framing codec.
package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	apiopenai "github.com/helmgate/helmgate/internal/api/openai"
	"github.com/helmgate/helmgate/internal/codec"
	"github.com/helmgate/helmgate/internal/domain"
)

// Codec converts OpenAI chat completion payloads to and from the canonical
// model.
type Codec struct{}

// New returns the OpenAI codec.
func New() *Codec { return &Codec{} }

func (c *Codec) Name() string { return "openai" }

// DecodeRequest converts an OpenAI request body to canonical form. Leading
// system messages collapse into the canonical system prompt.
func (c *Codec) DecodeRequest(data []byte) (*domain.Request, error) {
	var apiReq apiopenai.ChatCompletionRequest
	if err := json.Unmarshal(data, &apiReq); err != nil {
		return nil, fmt.Errorf("decode openai request: %w", err)
	}

	req := &domain.Request{
		Model:  apiReq.Model,
		Stream: apiReq.Stream,
	}

	if apiReq.MaxCompletionTokens > 0 {
		req.MaxTokens = apiReq.MaxCompletionTokens
	} else {
		req.MaxTokens = apiReq.MaxTokens
	}
	if apiReq.Temperature != nil {
		req.Temperature = *apiReq.Temperature
	}
	if apiReq.ReasoningEffort != "" {
		req.Thinking = &domain.ThinkingOption{Type: apiReq.ReasoningEffort}
	}
	if apiReq.WebSearchOptions != nil {
		req.WebSearch = true
	}
	if apiReq.ServiceTier == "flex" || apiReq.ServiceTier == "batch" {
		req.Background = true
	}

	var system []string
	for _, m := range apiReq.Messages {
		switch m.Role {
		case domain.RoleSystem, "developer":
			system = append(system, m.Content.Text)
		case "tool":
			req.Messages = append(req.Messages, domain.Message{
				Role: domain.RoleUser,
				Content: domain.NewPartsContent(
					domain.ToolResultPart(m.ToolCallID, m.Content.Text, false),
				),
			})
		default:
			req.Messages = append(req.Messages, decodeMessage(m))
		}
	}
	req.System = strings.Join(system, "\n")

	for _, t := range apiReq.Tools {
		req.Tools = append(req.Tools, domain.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}

	return req, nil
}

func decodeMessage(m apiopenai.ChatMessage) domain.Message {
	msg := domain.Message{Role: m.Role}

	var parts []domain.ContentPart
	if len(m.Content.Parts) > 0 {
		for _, p := range m.Content.Parts {
			switch p.Type {
			case "image_url":
				if p.ImageURL != nil {
					parts = append(parts, domain.ContentPart{
						Type:   domain.ContentTypeImage,
						Source: &domain.ImageSource{Type: "url", URL: p.ImageURL.URL},
					})
				}
			default:
				parts = append(parts, domain.TextPart(p.Text))
			}
		}
	}

	for _, tc := range m.ToolCalls {
		var input any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
			input = tc.Function.Arguments
		}
		parts = append(parts, domain.ToolUsePart(tc.ID, tc.Function.Name, input))
	}

	if parts == nil {
		msg.Content = domain.NewTextContent(m.Content.Text)
	} else {
		if m.Content.Text != "" {
			parts = append([]domain.ContentPart{domain.TextPart(m.Content.Text)}, parts...)
		}
		msg.Content = domain.NewPartsContent(parts...)
	}
	return msg
}

// EncodeRequest converts a canonical request to an OpenAI request body.
func (c *Codec) EncodeRequest(req *domain.Request) ([]byte, error) {
	apiReq := &apiopenai.ChatCompletionRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}
	if req.MaxTokens > 0 {
		apiReq.MaxCompletionTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		apiReq.Temperature = &t
	}
	if req.Thinking != nil {
		apiReq.ReasoningEffort = req.Thinking.Type
	}

	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, apiopenai.ChatMessage{
			Role:    domain.RoleSystem,
			Content: apiopenai.MessageContent{Text: req.System},
		})
	}

	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, encodeMessage(msg)...)
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, apiopenai.Tool{
			Type: "function",
			Function: apiopenai.FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return json.Marshal(apiReq)
}

// encodeMessage may fan one canonical message out into several wire
// messages: tool results become their own role "tool" entries.
func encodeMessage(msg domain.Message) []apiopenai.ChatMessage {
	if msg.Content.IsSimpleText() {
		return []apiopenai.ChatMessage{{
			Role:    msg.Role,
			Content: apiopenai.MessageContent{Text: msg.Content.Text},
		}}
	}

	var out []apiopenai.ChatMessage
	main := apiopenai.ChatMessage{Role: msg.Role}
	var parts []apiopenai.ContentPart

	for _, p := range msg.Content.Parts {
		switch p.Type {
		case domain.ContentTypeText:
			parts = append(parts, apiopenai.ContentPart{Type: "text", Text: p.Text})
		case domain.ContentTypeImage:
			if p.Source != nil {
				url := p.Source.URL
				if p.Source.Type == "base64" {
					url = "data:" + p.Source.MediaType + ";base64," + p.Source.Data
				}
				parts = append(parts, apiopenai.ContentPart{
					Type:     "image_url",
					ImageURL: &apiopenai.ImageURL{URL: url},
				})
			}
		case domain.ContentTypeToolUse:
			args, _ := json.Marshal(p.Input)
			main.ToolCalls = append(main.ToolCalls, apiopenai.ToolCall{
				ID:   p.ID,
				Type: "function",
				Function: apiopenai.FunctionCall{
					Name:      p.Name,
					Arguments: string(args),
				},
			})
		case domain.ContentTypeToolResult:
			out = append(out, apiopenai.ChatMessage{
				Role:       "tool",
				ToolCallID: p.ToolUseID,
				Content:    apiopenai.MessageContent{Text: p.Content},
			})
		}
	}

	main.Content = apiopenai.MessageContent{Parts: parts}
	if len(parts) > 0 || len(main.ToolCalls) > 0 {
		out = append([]apiopenai.ChatMessage{main}, out...)
	}
	return out
}

// DecodeResponse converts an OpenAI response body to canonical form.
func (c *Codec) DecodeResponse(data []byte) (*domain.Response, error) {
	var apiResp apiopenai.ChatCompletionResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}

	choice := apiResp.Choices[0]
	resp := &domain.Response{
		ID:         apiResp.ID,
		Model:      apiResp.Model,
		Role:       domain.RoleAssistant,
		StopReason: stopReasonFromFinish(choice.FinishReason),
		Usage: domain.Usage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
		},
	}

	if choice.Message.Content != "" {
		resp.Content = append(resp.Content, domain.TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		var input any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
			input = tc.Function.Arguments
		}
		resp.Content = append(resp.Content, domain.ToolUsePart(tc.ID, tc.Function.Name, input))
	}

	return resp, nil
}

// EncodeResponse converts a canonical response to an OpenAI response body.
func (c *Codec) EncodeResponse(resp *domain.Response) ([]byte, error) {
	msg := apiopenai.AssistantMessage{Role: domain.RoleAssistant}
	var text strings.Builder
	for _, p := range resp.Content {
		switch p.Type {
		case domain.ContentTypeText:
			text.WriteString(p.Text)
		case domain.ContentTypeToolUse:
			args, _ := json.Marshal(p.Input)
			msg.ToolCalls = append(msg.ToolCalls, apiopenai.ToolCall{
				ID:   p.ID,
				Type: "function",
				Function: apiopenai.FunctionCall{
					Name:      p.Name,
					Arguments: string(args),
				},
			})
		}
	}
	msg.Content = text.String()

	apiResp := apiopenai.ChatCompletionResponse{
		ID:     resp.ID,
		Object: "chat.completion",
		Model:  resp.Model,
		Choices: []apiopenai.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finishFromStopReason(resp.StopReason),
		}},
		Usage: apiopenai.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	return json.Marshal(apiResp)
}

// DecodeStreamChunk converts one OpenAI SSE data payload to a canonical
// event.
func (c *Codec) DecodeStreamChunk(data []byte) (*domain.StreamEvent, error) {
	var chunk apiopenai.ChatCompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("decode openai chunk: %w", err)
	}

	ev := &domain.StreamEvent{}
	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		ev.Role = choice.Delta.Role
		ev.ContentDelta = choice.Delta.Content
		if choice.FinishReason != nil {
			ev.StopReason = stopReasonFromFinish(*choice.FinishReason)
		}
		if len(choice.Delta.ToolCalls) > 0 {
			tc := choice.Delta.ToolCalls[0]
			ev.ToolCall = &domain.ToolCallDelta{Index: tc.Index, ID: tc.ID}
			if tc.Function != nil {
				ev.ToolCall.Name = tc.Function.Name
				ev.ToolCall.Arguments = tc.Function.Arguments
			}
		}
	}
	if chunk.Usage != nil {
		ev.Usage = &domain.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}
	return ev, nil
}

// EncodeStreamStart: the OpenAI framing has no preamble.
func (c *Codec) EncodeStreamStart(meta *codec.StreamMetadata) []byte { return nil }

// EncodeStreamChunk renders a canonical event as one OpenAI SSE frame.
func (c *Codec) EncodeStreamChunk(ev *domain.StreamEvent, meta *codec.StreamMetadata) ([]byte, error) {
	chunk := apiopenai.ChatCompletionChunk{
		Object: "chat.completion.chunk",
		Choices: []apiopenai.ChunkChoice{{
			Index: 0,
			Delta: apiopenai.ChunkDelta{Role: ev.Role, Content: ev.ContentDelta},
		}},
	}
	if meta != nil {
		chunk.ID = meta.ID
		chunk.Model = meta.Model
		chunk.Created = meta.Created
	}
	if ev.StopReason != "" {
		reason := finishFromStopReason(ev.StopReason)
		chunk.Choices[0].FinishReason = &reason
	}
	if ev.ToolCall != nil {
		chunk.Choices[0].Delta.ToolCalls = []apiopenai.ToolCallChunk{{
			Index: ev.ToolCall.Index,
			ID:    ev.ToolCall.ID,
			Type:  "function",
			Function: &apiopenai.FunctionCallChunk{
				Name:      ev.ToolCall.Name,
				Arguments: ev.ToolCall.Arguments,
			},
		}}
	}
	if ev.Usage != nil {
		chunk.Usage = &apiopenai.Usage{
			PromptTokens:     ev.Usage.InputTokens,
			CompletionTokens: ev.Usage.OutputTokens,
			TotalTokens:      ev.Usage.InputTokens + ev.Usage.OutputTokens,
		}
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		return nil, err
	}
	return codec.SSEFrame("", data), nil
}

// EncodeStreamEnd terminates the OpenAI stream.
func (c *Codec) EncodeStreamEnd(meta *codec.StreamMetadata) []byte {
	return codec.SSEFrame("", []byte("[DONE]"))
}

// EncodeStreamError renders an in-stream error frame.
func (c *Codec) EncodeStreamError(message string) []byte {
	body, _ := json.Marshal(apiopenai.ErrorResponse{
		Error: apiopenai.ErrorBody{Message: message, Type: "server_error"},
	})
	return codec.SSEFrame("", body)
}

// EncodeError renders a client-facing error body.
func (c *Codec) EncodeError(status int, message string) []byte {
	errType := "server_error"
	if status >= 400 && status < 500 {
		errType = "invalid_request_error"
	}
	body, _ := json.Marshal(apiopenai.ErrorResponse{
		Error: apiopenai.ErrorBody{Message: message, Type: errType},
	})
	return body
}

func stopReasonFromFinish(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	default:
		return reason
	}
}

func finishFromStopReason(reason string) string {
	switch reason {
	case "end_turn":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}

var _ codec.Codec = (*Codec)(nil)
