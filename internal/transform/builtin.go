package transform

import (
	"strings"

	"github.com/helmgate/helmgate/internal/domain"
	"github.com/helmgate/helmgate/internal/translate"
)

// Built-in transformer names.
const (
	NameSystemPrompt   = "system-prompt"
	NameModelNamespace = "model-namespace"
	NameReasoning      = "reasoning"
	NameToolNormalize  = "tool-normalize"
)

// DefaultRegistry returns a registry preloaded with the built-ins.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SystemPrompt{})
	r.Register(ModelNamespace{Namespace: "anthropic", Families: translate.Families})
	r.Register(Reasoning{})
	r.Register(ToolNormalize{})
	return r
}

// SystemPrompt relocates the separate system field into a leading message
// with role "system", flattens multi-block message content to a single text
// block, and strips the thinking option, for providers that support none of
// those natively.
type SystemPrompt struct {
	Identity
}

func (SystemPrompt) Name() string { return NameSystemPrompt }

func (SystemPrompt) TransformRequest(req *domain.Request) error {
	if req.System != "" {
		msg := domain.Message{Role: domain.RoleSystem, Content: domain.NewTextContent(req.System)}
		req.Messages = append([]domain.Message{msg}, req.Messages...)
		req.System = ""
	}

	for i := range req.Messages {
		content := &req.Messages[i].Content
		if content.IsSimpleText() {
			continue
		}
		req.Messages[i].Content = domain.NewTextContent(flatten(content.Parts))
	}

	req.Thinking = nil
	return nil
}

// flatten concatenates flattenable parts (text, tool-result) and drops the
// rest (image, tool-use).
func flatten(parts []domain.ContentPart) string {
	var b strings.Builder
	for _, part := range parts {
		switch part.Type {
		case domain.ContentTypeText:
			b.WriteString(part.Text)
		case domain.ContentTypeToolResult:
			b.WriteString(part.Content)
		}
	}
	return b.String()
}

// ModelNamespace applies the namespaced-slug normalization to the model
// field on the request path only.
type ModelNamespace struct {
	Identity
	Namespace string
	Families  []string
}

func (ModelNamespace) Name() string { return NameModelNamespace }

func (t ModelNamespace) TransformRequest(req *domain.Request) error {
	req.Model = translate.Namespace(req.Model, t.Namespace, t.Families)
	return nil
}

// Reasoning splits a response whose first text block carries paired
// reasoning delimiters into labeled reasoning and answer sections. Response
// direction only.
type Reasoning struct {
	Identity
}

const (
	reasoningOpen  = "<think>"
	reasoningClose = "</think>"
)

func (Reasoning) Name() string { return NameReasoning }

func (Reasoning) TransformResponse(resp *domain.Response) error {
	for i := range resp.Content {
		part := resp.Content[i]
		if part.Type != domain.ContentTypeText {
			continue
		}

		open := strings.Index(part.Text, reasoningOpen)
		if open < 0 {
			return nil
		}
		rest := part.Text[open+len(reasoningOpen):]
		closeIdx := strings.Index(rest, reasoningClose)
		if closeIdx < 0 {
			return nil
		}

		reasoning := strings.TrimSpace(rest[:closeIdx])
		answer := strings.TrimSpace(part.Text[:open] + rest[closeIdx+len(reasoningClose):])

		segments := []domain.ContentPart{
			domain.TextPart("### Reasoning\n" + reasoning),
			domain.TextPart("### Answer\n" + answer),
		}
		resp.Content = append(resp.Content[:i], append(segments, resp.Content[i+1:]...)...)
		return nil
	}
	return nil
}

// ToolNormalize passes tool schemas through when the canonical shape already
// matches the target; kept as an explicit chain member so providers that
// later need schema rewrites have a named slot. Response pass-through.
type ToolNormalize struct {
	Identity
}

func (ToolNormalize) Name() string { return NameToolNormalize }

func (ToolNormalize) TransformRequest(req *domain.Request) error {
	// Canonical tool definitions are already the common denominator shape;
	// nothing to rewrite today.
	return nil
}
