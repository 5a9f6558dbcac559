// Package detect classifies the calling client from transport metadata and
// determines the wire framing its bytes use. Detection never fails: absent
// or ambiguous signals yield the generic classification.
package detect

import (
	"net/http"
	"strings"
)

// Framing is the closed set of supported wire framings.
type Framing string

const (
	FramingOpenAI    Framing = "openai"
	FramingAnthropic Framing = "anthropic"
)

// Method records how the classification was made, highest confidence first.
type Method string

const (
	MethodHeader  Method = "header"
	MethodPath    Method = "path"
	MethodDefault Method = "default"
)

// Client names.
const (
	ClientClaudeCLI = "claude-cli"
	ClientOpenAISDK = "openai-sdk"
	ClientGeneric   = "generic"
)

// ClientType is the detected caller and its expected framing.
type ClientType struct {
	Name    string
	Framing Framing
	Method  Method
}

// Classify inspects headers and the request path. Precedence: explicit
// client header, definitive format headers, credential shape, user agent,
// path suffix, then the generic default.
func Classify(header http.Header, path string) ClientType {
	// Explicit override header wins outright.
	if name := header.Get("X-Helmgate-Client"); name != "" {
		switch strings.ToLower(name) {
		case "anthropic", ClientClaudeCLI:
			return ClientType{Name: ClientClaudeCLI, Framing: FramingAnthropic, Method: MethodHeader}
		case "openai", ClientOpenAISDK:
			return ClientType{Name: ClientOpenAISDK, Framing: FramingOpenAI, Method: MethodHeader}
		}
	}

	// anthropic-version is definitive; the Claude CLI and SDKs always send it.
	if header.Get("anthropic-version") != "" {
		return ClientType{Name: ClientClaudeCLI, Framing: FramingAnthropic, Method: MethodHeader}
	}

	// Anthropic-shaped credentials.
	if strings.HasPrefix(header.Get("x-api-key"), "sk-ant-") ||
		strings.HasPrefix(header.Get("Authorization"), "Bearer sk-ant-") {
		return ClientType{Name: ClientClaudeCLI, Framing: FramingAnthropic, Method: MethodHeader}
	}

	if ua := header.Get("User-Agent"); ua != "" {
		lower := strings.ToLower(ua)
		if strings.HasPrefix(lower, "claude-cli") || strings.Contains(lower, "anthropic") {
			return ClientType{Name: ClientClaudeCLI, Framing: FramingAnthropic, Method: MethodHeader}
		}
		if strings.HasPrefix(lower, "openai") {
			return ClientType{Name: ClientOpenAISDK, Framing: FramingOpenAI, Method: MethodHeader}
		}
	}

	if strings.HasSuffix(path, "/v1/messages") {
		return ClientType{Name: ClientGeneric, Framing: FramingAnthropic, Method: MethodPath}
	}
	if strings.HasSuffix(path, "/chat/completions") || strings.HasSuffix(path, "/v1/completions") {
		return ClientType{Name: ClientGeneric, Framing: FramingOpenAI, Method: MethodPath}
	}

	return ClientType{Name: ClientGeneric, Framing: FramingOpenAI, Method: MethodDefault}
}
