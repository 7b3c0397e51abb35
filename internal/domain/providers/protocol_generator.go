package providers

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrGeneratorUnavailable is returned when no AI provider is configured
	ErrGeneratorUnavailable = errors.New("protocol generator unavailable")

	// ErrGeneratorUnauthorized is returned when the provider rejects the credentials
	ErrGeneratorUnauthorized = errors.New("protocol generator unauthorized")

	// ErrMalformedCompletion is returned when the provider answered without the structured payload
	ErrMalformedCompletion = errors.New("provider response missing structured content")
)

// Prompt is a fully built, sanitized prompt for one AI call
type Prompt struct {
	ID           string
	Version      string
	System       string
	User         string
	FunctionName string
}

// Completion is the raw structured payload returned by the provider
type Completion struct {
	Content   []byte
	Model     string
	TokensIn  int
	TokensOut int
}

// ProtocolGenerator calls an LLM to produce treatment protocols
type ProtocolGenerator interface {
	// GenerateJSON asks for a JSON object answer.
	GenerateJSON(ctx context.Context, prompt Prompt) (*Completion, error)

	// GenerateFunctionCall forces a single function call named prompt.FunctionName
	// whose parameters follow the given JSON schema, and returns its arguments.
	GenerateFunctionCall(ctx context.Context, prompt Prompt, schema json.RawMessage) (*Completion, error)

	// Model returns the configured model name.
	Model() string
}
