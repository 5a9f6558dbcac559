package domain

import (
	"errors"
	"net/http"
	"testing"
)

func TestRequestClone(t *testing.T) {
	orig := &Request{
		Model:  "m",
		System: "s",
		Messages: []Message{
			{Role: RoleUser, Content: NewPartsContent(TextPart("hello"))},
		},
		Tools:    []ToolDefinition{{Name: "lookup"}},
		Thinking: &ThinkingOption{Type: "enabled", BudgetTokens: 100},
		Metadata: map[string]string{"k": "v"},
	}

	clone := orig.Clone()

	clone.Model = "other"
	clone.Messages[0].Content.Parts[0].Text = "mutated"
	clone.Messages = append(clone.Messages, Message{Role: RoleAssistant})
	clone.Tools[0].Name = "changed"
	clone.Thinking.BudgetTokens = 1
	clone.Metadata["k"] = "w"

	if orig.Model != "m" {
		t.Error("model shared")
	}
	if orig.Messages[0].Content.Parts[0].Text != "hello" {
		t.Error("message content shared")
	}
	if len(orig.Messages) != 1 {
		t.Error("message slice shared")
	}
	if orig.Tools[0].Name != "lookup" {
		t.Error("tools shared")
	}
	if orig.Thinking.BudgetTokens != 100 {
		t.Error("thinking shared")
	}
	if orig.Metadata["k"] != "v" {
		t.Error("metadata shared")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantStatus int
		retryable  bool
	}{
		{"bad request", BadRequestError(errors.New("nope")), http.StatusBadRequest, false},
		{"unsupported model", UnsupportedModelError("m", "p", "no rule"), http.StatusBadRequest, true},
		{"transport", TransportError("p", errors.New("refused")), http.StatusBadGateway, true},
		{"upstream status", UpstreamStatusError("p", 503, "overloaded"), http.StatusBadGateway, true},
		{"exhausted", ExhaustedError(errors.New("last")), http.StatusBadGateway, false},
		{"partial stream", PartialStreamError(errors.New("cut")), http.StatusInternalServerError, false},
		{"config", ConfigError("bad %s", "field"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
			if got := Retryable(tt.err); got != tt.retryable {
				t.Errorf("retryable = %v, want %v", got, tt.retryable)
			}
		})
	}

	t.Run("wrapped errors unwrap", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := TransportError("p", inner)
		if !errors.Is(err, inner) {
			t.Error("Unwrap chain broken")
		}
		if !Retryable(err) {
			t.Error("retryable lost through errors.As")
		}
	})

	t.Run("plain errors are not retryable", func(t *testing.T) {
		if Retryable(errors.New("plain")) {
			t.Error("plain error reported retryable")
		}
	})
}

func TestResponseText(t *testing.T) {
	resp := &Response{Content: []ContentPart{
		TextPart("a"),
		ToolUsePart("id", "name", nil),
		TextPart("b"),
	}}
	if got := resp.Text(); got != "ab" {
		t.Errorf("Text() = %q", got)
	}
}

func TestMessageContentJSON(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		var mc MessageContent
		if err := mc.UnmarshalJSON([]byte(`"hello"`)); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !mc.IsSimpleText() || mc.Text != "hello" {
			t.Errorf("content = %+v", mc)
		}
	})

	t.Run("array form defaults type to text", func(t *testing.T) {
		var mc MessageContent
		if err := mc.UnmarshalJSON([]byte(`[{"text":"hi"}]`)); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(mc.Parts) != 1 || mc.Parts[0].Type != ContentTypeText {
			t.Errorf("parts = %+v", mc.Parts)
		}
	})
}
