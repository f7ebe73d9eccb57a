package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotConfigured is returned by the Disabled client: no model backend
	// is available and the caller did not define a deliberate fallback.
	ErrNotConfigured = errors.New("llm: no model backend configured")
	// ErrInvalidJSON means the model produced no usable JSON payload.
	ErrInvalidJSON = errors.New("llm: invalid JSON from model")
)

// Message is one turn of chat history handed to a backend.
// Role is "user" or "model".
type Message struct {
	Role string
	Text string
}

// LLMClient is the single abstraction over a text/JSON-generating model.
// GenerateJSON output is always sanitized (fences stripped, first balanced
// object extracted) before being returned, so callers can unmarshal the
// RawMessage directly. GenerateStream invokes onChunk in generation order
// and returns the assembled full text.
type LLMClient interface {
	Name() string
	GenerateText(ctx context.Context, system string, msgs []Message) (string, error)
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error)
	Close() error
}

// PermanentError marks a failure that retry middleware must not retry
// (e.g. context length exceeded).
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Disabled is the loud-failure client used when no backend is configured.
// Every call returns ErrNotConfigured; silently returning empty output
// would let a half-configured deployment limp along producing garbage.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }
func (Disabled) Close() error { return nil }
func (Disabled) GenerateText(context.Context, string, []Message) (string, error) {
	return "", ErrNotConfigured
}
func (Disabled) GenerateJSON(context.Context, string, any) (json.RawMessage, error) {
	return nil, ErrNotConfigured
}
func (Disabled) GenerateStream(context.Context, string, []Message, func(string)) (string, error) {
	return "", ErrNotConfigured
}
