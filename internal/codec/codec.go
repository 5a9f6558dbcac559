// Package codec defines the outermost boundary adapters between wire
// framings and the canonical model, including SSE stream encoding.
package codec

import (
	"bytes"

	"github.com/helmgate/helmgate/internal/domain"
)

// StreamMetadata carries identifying fields streamed chunks need.
type StreamMetadata struct {
	ID      string
	Model   string
	Created int64
}

// Codec converts one wire framing to and from the canonical model. Stream
// encode methods return complete SSE frames ready to write.
type Codec interface {
	Name() string

	DecodeRequest(data []byte) (*domain.Request, error)
	EncodeRequest(req *domain.Request) ([]byte, error)

	DecodeResponse(data []byte) (*domain.Response, error)
	EncodeResponse(resp *domain.Response) ([]byte, error)

	// DecodeStreamChunk parses one SSE data payload. A (nil, nil) return
	// marks a housekeeping event with no canonical equivalent.
	DecodeStreamChunk(data []byte) (*domain.StreamEvent, error)

	// EncodeStreamStart returns preamble frames, or nil when the framing
	// has none.
	EncodeStreamStart(meta *StreamMetadata) []byte
	EncodeStreamChunk(ev *domain.StreamEvent, meta *StreamMetadata) ([]byte, error)
	EncodeStreamEnd(meta *StreamMetadata) []byte
	EncodeStreamError(message string) []byte

	// EncodeError renders a client-facing error body in this dialect.
	EncodeError(status int, message string) []byte
}

// SSEFrame renders one SSE frame. The event name is omitted when empty,
// which is the OpenAI convention; Anthropic framing names every event.
func SSEFrame(event string, data []byte) []byte {
	var b bytes.Buffer
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteString("\n")
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	return b.Bytes()
}
