package transform

import (
	"strings"
	"testing"

	"github.com/helmgate/helmgate/internal/domain"
)

func TestSystemPrompt(t *testing.T) {
	t.Run("relocates system into leading message", func(t *testing.T) {
		req := &domain.Request{
			System: "You are helpful.",
			Messages: []domain.Message{
				{Role: domain.RoleUser, Content: domain.NewTextContent("hi")},
			},
			Thinking: &domain.ThinkingOption{Type: "enabled"},
		}
		if err := (SystemPrompt{}).TransformRequest(req); err != nil {
			t.Fatalf("TransformRequest: %v", err)
		}

		if req.System != "" {
			t.Error("system field not cleared")
		}
		if len(req.Messages) != 2 {
			t.Fatalf("message count = %d, want 2", len(req.Messages))
		}
		if req.Messages[0].Role != domain.RoleSystem {
			t.Errorf("leading role = %s", req.Messages[0].Role)
		}
		if req.Messages[0].Content.Text != "You are helpful." {
			t.Errorf("leading content = %q", req.Messages[0].Content.Text)
		}
		if req.Messages[1].Role != domain.RoleUser {
			t.Error("original message displaced")
		}
		if req.Thinking != nil {
			t.Error("thinking option not stripped")
		}
	})

	t.Run("no system field leaves messages alone", func(t *testing.T) {
		req := &domain.Request{
			Messages: []domain.Message{
				{Role: domain.RoleUser, Content: domain.NewTextContent("hi")},
			},
		}
		if err := (SystemPrompt{}).TransformRequest(req); err != nil {
			t.Fatalf("TransformRequest: %v", err)
		}
		if len(req.Messages) != 1 {
			t.Errorf("message count = %d, want 1", len(req.Messages))
		}
	})

	t.Run("flattens multipart content", func(t *testing.T) {
		req := &domain.Request{
			Messages: []domain.Message{
				{Role: domain.RoleUser, Content: domain.NewPartsContent(
					domain.TextPart("look at "),
					domain.ImagePart("image/png", "aGVsbG8="),
					domain.TextPart("this"),
					domain.ToolResultPart("tu_1", " and that", false),
				)},
			},
		}
		if err := (SystemPrompt{}).TransformRequest(req); err != nil {
			t.Fatalf("TransformRequest: %v", err)
		}
		content := req.Messages[0].Content
		if !content.IsSimpleText() {
			t.Fatal("content not flattened to plain text")
		}
		if content.Text != "look at this and that" {
			t.Errorf("flattened text = %q", content.Text)
		}
	})
}

func TestModelNamespace(t *testing.T) {
	tr := ModelNamespace{Namespace: "anthropic", Families: []string{"claude"}}

	req := &domain.Request{Model: "claude-3-5-sonnet"}
	if err := tr.TransformRequest(req); err != nil {
		t.Fatalf("TransformRequest: %v", err)
	}
	if req.Model != "anthropic/claude-3-5-sonnet" {
		t.Errorf("model = %q", req.Model)
	}

	// Response direction is identity.
	resp := &domain.Response{Model: "anthropic/claude-3-5-sonnet"}
	if err := tr.TransformResponse(resp); err != nil {
		t.Fatalf("TransformResponse: %v", err)
	}
	if resp.Model != "anthropic/claude-3-5-sonnet" {
		t.Error("response direction mutated the model")
	}
}

func TestReasoning(t *testing.T) {
	t.Run("splits paired delimiters", func(t *testing.T) {
		resp := &domain.Response{Content: []domain.ContentPart{
			domain.TextPart("<think>weighing options</think>The answer is 42."),
		}}
		if err := (Reasoning{}).TransformResponse(resp); err != nil {
			t.Fatalf("TransformResponse: %v", err)
		}
		if len(resp.Content) != 2 {
			t.Fatalf("content parts = %d, want 2", len(resp.Content))
		}
		if !strings.HasPrefix(resp.Content[0].Text, "### Reasoning\n") {
			t.Errorf("reasoning section = %q", resp.Content[0].Text)
		}
		if !strings.Contains(resp.Content[0].Text, "weighing options") {
			t.Error("reasoning body lost")
		}
		if !strings.HasPrefix(resp.Content[1].Text, "### Answer\n") {
			t.Errorf("answer section = %q", resp.Content[1].Text)
		}
		if !strings.Contains(resp.Content[1].Text, "The answer is 42.") {
			t.Error("answer body lost")
		}
	})

	t.Run("unpaired delimiter untouched", func(t *testing.T) {
		text := "<think>never closed"
		resp := &domain.Response{Content: []domain.ContentPart{domain.TextPart(text)}}
		if err := (Reasoning{}).TransformResponse(resp); err != nil {
			t.Fatalf("TransformResponse: %v", err)
		}
		if len(resp.Content) != 1 || resp.Content[0].Text != text {
			t.Error("unpaired delimiter was rewritten")
		}
	})

	t.Run("plain text untouched", func(t *testing.T) {
		resp := &domain.Response{Content: []domain.ContentPart{domain.TextPart("just an answer")}}
		if err := (Reasoning{}).TransformResponse(resp); err != nil {
			t.Fatalf("TransformResponse: %v", err)
		}
		if len(resp.Content) != 1 {
			t.Error("plain text was split")
		}
	})
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{NameSystemPrompt, NameModelNamespace, NameReasoning, NameToolNormalize} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("built-in %q not registered", name)
		}
	}
}
