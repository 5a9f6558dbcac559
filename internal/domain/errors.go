package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of gateway failure categories. Each kind is either
// retryable (the dispatch loop may advance to the next fallback candidate)
// or terminal.
type Kind string

const (
	// KindConfig is a configuration error. Always raised at load time.
	KindConfig Kind = "config"

	// KindBadRequest is a malformed or undecodable inbound request.
	KindBadRequest Kind = "bad_request"

	// KindUnsupportedModel is a model that could not be translated for a
	// candidate provider, or that resolved to an excluded name.
	KindUnsupportedModel Kind = "unsupported_model"

	// KindTransport covers timeouts, connection failures, non-success
	// upstream status codes, and malformed upstream bodies.
	KindTransport Kind = "transport"

	// KindUpstreamExhausted means every candidate in the fallback chain
	// failed.
	KindUpstreamExhausted Kind = "upstream_exhausted"

	// KindPartialStream is a failure after stream content already reached
	// the caller. Never retried.
	KindPartialStream Kind = "partial_stream"
)

// Error is the gateway's canonical error. The Retryable tag drives the
// fallback loop; Status suggests the client-facing HTTP code.
type Error struct {
	Kind      Kind
	Message   string
	Status    int
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusCode returns the client-facing status for this error.
func (e *Error) HTTPStatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindBadRequest, KindUnsupportedModel:
		return http.StatusBadRequest
	case KindTransport, KindUpstreamExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the dispatch loop may advance to the next
// candidate after err.
func Retryable(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// ConfigError builds a load-time configuration error.
func ConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// BadRequestError builds an inbound decode/validation error.
func BadRequestError(err error) *Error {
	return &Error{Kind: KindBadRequest, Message: "invalid request", Err: err}
}

// UnsupportedModelError marks a failed model translation for one candidate.
// Retryable: the caller advances the chain.
func UnsupportedModelError(model, provider, reason string) *Error {
	return &Error{
		Kind:      KindUnsupportedModel,
		Message:   fmt.Sprintf("model %q unsupported by provider %q: %s", model, provider, reason),
		Retryable: true,
	}
}

// TransportError marks a timeout or connection-level failure. Retryable.
func TransportError(provider string, err error) *Error {
	return &Error{
		Kind:      KindTransport,
		Message:   fmt.Sprintf("provider %q", provider),
		Retryable: true,
		Err:       err,
	}
}

// UpstreamStatusError marks a non-success upstream status. Retryable.
func UpstreamStatusError(provider string, status int, body string) *Error {
	return &Error{
		Kind:      KindTransport,
		Message:   fmt.Sprintf("provider %q returned status %d: %s", provider, status, body),
		Retryable: true,
	}
}

// ExhaustedError is the terminal error after the whole chain failed.
func ExhaustedError(last error) *Error {
	return &Error{
		Kind:    KindUpstreamExhausted,
		Message: "all fallback candidates failed",
		Err:     last,
	}
}

// PartialStreamError is the terminal error for a stream that failed after
// content was already delivered.
func PartialStreamError(err error) *Error {
	return &Error{
		Kind:    KindPartialStream,
		Message: "stream failed after partial delivery",
		Err:     err,
	}
}
