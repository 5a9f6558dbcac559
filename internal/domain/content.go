package domain

import "encoding/json"

// ContentType identifies a typed block inside message content.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeImage      ContentType = "image"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// ContentPart is a single typed block of message or response content.
type ContentPart struct {
	Type ContentType `json:"type"`

	// Text content.
	Text string `json:"text,omitempty"`

	// Image content (base64 source).
	Source *ImageSource `json:"source,omitempty"`

	// Tool use (assistant invoking a tool).
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// Tool result (caller returning tool output).
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ImageSource is image data, either base64-encoded or referenced by URL.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// MessageContent is either plain text or an ordered list of typed blocks.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// IsSimpleText reports whether the content is plain text with no blocks.
func (mc *MessageContent) IsSimpleText() bool {
	return len(mc.Parts) == 0
}

// String returns the text content, concatenating text parts when multipart.
func (mc *MessageContent) String() string {
	if mc.IsSimpleText() {
		return mc.Text
	}
	var out string
	for _, p := range mc.Parts {
		if p.Type == ContentTypeText {
			out += p.Text
		}
	}
	return out
}

func (mc MessageContent) clone() MessageContent {
	if len(mc.Parts) == 0 {
		return mc
	}
	parts := make([]ContentPart, len(mc.Parts))
	copy(parts, mc.Parts)
	return MessageContent{Parts: parts}
}

// MarshalJSON renders plain text as a JSON string and blocks as an array.
func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.IsSimpleText() {
		return json.Marshal(mc.Text)
	}
	return json.Marshal(mc.Parts)
}

// UnmarshalJSON accepts both the string shortcut and the block-array form.
func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		mc.Text = str
		mc.Parts = nil
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	for i := range parts {
		if parts[i].Type == "" {
			parts[i].Type = ContentTypeText
		}
	}
	mc.Parts = parts
	mc.Text = ""
	return nil
}

// NewTextContent builds plain-text message content.
func NewTextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// NewPartsContent builds multipart message content.
func NewPartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// TextPart builds a text block.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

// ImagePart builds an image block from base64 data.
func ImagePart(mediaType, data string) ContentPart {
	return ContentPart{
		Type:   ContentTypeImage,
		Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data},
	}
}

// ToolUsePart builds a tool-use block.
func ToolUsePart(id, name string, input any) ContentPart {
	return ContentPart{Type: ContentTypeToolUse, ID: id, Name: name, Input: input}
}

// ToolResultPart builds a tool-result block.
func ToolResultPart(toolUseID, content string, isError bool) ContentPart {
	return ContentPart{Type: ContentTypeToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}
