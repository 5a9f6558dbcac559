// Package domain holds the gateway's canonical, provider-agnostic
// representation of a chat exchange. Every wire format is decoded into these
// types at the boundary and encoded back out of them on the way back.
package domain

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ThinkingOption carries the caller's extended-reasoning request, when the
// inbound dialect supports one.
type ThinkingOption struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"` // JSON Schema
}

// Message is a single conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// Request is the canonical chat/completion request.
type Request struct {
	Model       string            `json:"model"`
	System      string            `json:"system,omitempty"`
	Messages    []Message         `json:"messages"`
	Tools       []ToolDefinition  `json:"tools,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Thinking    *ThinkingOption   `json:"thinking,omitempty"`
	Background  bool              `json:"background,omitempty"`
	WebSearch   bool              `json:"web_search,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy deep enough that transformers may mutate it without
// affecting the original. Each fallback candidate gets its own clone.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r

	out.Messages = make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		out.Messages[i] = Message{Role: m.Role, Content: m.Content.clone()}
	}

	if r.Tools != nil {
		out.Tools = make([]ToolDefinition, len(r.Tools))
		copy(out.Tools, r.Tools)
	}

	if r.Thinking != nil {
		t := *r.Thinking
		out.Thinking = &t
	}

	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}

	return &out
}

// Usage is the canonical token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the canonical chat/completion response. Provider names the
// upstream that served it; it never leaves the gateway on the wire.
type Response struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	Provider   string        `json:"-"`
	Role       string        `json:"role"`
	Content    []ContentPart `json:"content"`
	StopReason string        `json:"stop_reason,omitempty"`
	Usage      Usage         `json:"usage"`
}

// Text returns the concatenated text of all text parts.
func (r *Response) Text() string {
	var out string
	for _, p := range r.Content {
		if p.Type == ContentTypeText {
			out += p.Text
		}
	}
	return out
}

// ToolCallDelta is a partial tool invocation inside a stream.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamEvent is one canonical streaming increment. Exactly one of the
// payload fields is typically set; Error marks an in-stream failure.
type StreamEvent struct {
	Role         string
	ContentDelta string
	ToolCall     *ToolCallDelta
	StopReason   string
	Usage        *Usage
	Error        error
}
