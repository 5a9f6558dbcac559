// Package analyze derives routing-relevant signals from a canonical request.
// Analysis is pure: it never mutates the request and is deterministic for
// identical inputs. Hints are computed fresh per request and never cached.
package analyze

import (
	"encoding/json"
	"strings"

	"github.com/helmgate/helmgate/internal/config"
	"github.com/helmgate/helmgate/internal/domain"
	"github.com/helmgate/helmgate/internal/tokens"
)

// Hints are the per-request signals the routing engine consumes.
type Hints struct {
	TokenCount  int
	Reasoning   bool
	Image       bool
	WebSearch   bool
	Background  bool
	LongContext bool
}

// Analyzer computes Hints from a request against the router configuration.
type Analyzer struct {
	counter              tokens.Counter
	keywords             []string
	longContextThreshold int
	backgroundThreshold  int
}

// New builds an analyzer bound to the given token counter and router config.
func New(counter tokens.Counter, router *config.RouterConfig) *Analyzer {
	keywords := make([]string, len(router.ReasoningKeywords))
	for i, kw := range router.ReasoningKeywords {
		keywords[i] = strings.ToLower(kw)
	}
	return &Analyzer{
		counter:              counter,
		keywords:             keywords,
		longContextThreshold: router.LongContextThreshold,
		backgroundThreshold:  router.BackgroundThreshold,
	}
}

// Analyze derives the hints for req.
func (a *Analyzer) Analyze(req *domain.Request) Hints {
	text := promptText(req)
	count := a.counter.Count(text)

	hints := Hints{
		TokenCount:  count,
		Reasoning:   req.Thinking != nil || a.matchesKeyword(text),
		Image:       hasImage(req),
		WebSearch:   req.WebSearch || hasSearchTool(req),
		Background:  req.Background || count < a.backgroundThreshold,
		LongContext: count >= a.longContextThreshold,
	}
	return hints
}

// promptText concatenates the system prompt and all message content the
// tokenizer should see: text and tool-result blocks verbatim, tool-use
// inputs as JSON.
func promptText(req *domain.Request) string {
	var b strings.Builder
	b.WriteString(req.System)

	for _, msg := range req.Messages {
		if msg.Content.IsSimpleText() {
			b.WriteString("\n")
			b.WriteString(msg.Content.Text)
			continue
		}
		for _, part := range msg.Content.Parts {
			switch part.Type {
			case domain.ContentTypeText:
				b.WriteString("\n")
				b.WriteString(part.Text)
			case domain.ContentTypeToolResult:
				b.WriteString("\n")
				b.WriteString(part.Content)
			case domain.ContentTypeToolUse:
				if part.Input != nil {
					if raw, err := json.Marshal(part.Input); err == nil {
						b.WriteString("\n")
						b.Write(raw)
					}
				}
			}
		}
	}
	return b.String()
}

func (a *Analyzer) matchesKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range a.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasImage(req *domain.Request) bool {
	for _, msg := range req.Messages {
		for _, part := range msg.Content.Parts {
			if part.Type == domain.ContentTypeImage {
				return true
			}
		}
	}
	return false
}

func hasSearchTool(req *domain.Request) bool {
	for _, tool := range req.Tools {
		name := strings.ToLower(tool.Name)
		desc := strings.ToLower(tool.Description)
		if strings.Contains(name, "search") || strings.Contains(desc, "search") {
			return true
		}
	}
	return false
}
