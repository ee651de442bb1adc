// Package llm is the language-model boundary: chat completions with optional
// image input and JSON-schema structured output, plus audio transcription.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ErrNotConfigured is returned when no LLM provider is configured.
var ErrNotConfigured = errors.New("llm: provider not configured")

// Provider is the interface for LLM backends.
type Provider interface {
	// Generate runs one chat completion.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Transcribe converts an audio clip to text.
	Transcribe(ctx context.Context, filename, contentType string, audio io.Reader) (string, error)

	// Ping validates connectivity and credentials.
	Ping(ctx context.Context) error

	// Name returns the display name of this provider.
	Name() string
}

// Role of a conversation message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior conversation turn.
type Message struct {
	Role    string
	Content string
}

// Request describes one completion.
type Request struct {
	System   string
	History  []Message // prior turns, oldest first
	Prompt   string    // the new user message
	ImageURL string    // optional image attached to Prompt
	Schema   *Schema   // when set, the reply must be JSON matching it
	Vision   bool      // use the vision model
	Options  Options
}

// Schema names a JSON schema for structured output.
type Schema struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Options controls LLM generation behavior.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Response holds the LLM's output.
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	Duration   time.Duration
	StopReason string
}

// GenerateSchema reflects T into a strict JSON schema suitable for
// structured output.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm/%s: status %d (%s): %s", strings.ToLower(e.Provider), e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("llm/%s: status %d: %s", strings.ToLower(e.Provider), e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// UserMessage returns an operator-facing explanation of the failure.
func (e *APIError) UserMessage() string {
	msg := strings.ToLower(e.Message)
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return fmt.Sprintf("Invalid API key for %s. Check LLM_API_KEY.", e.Provider)
	case e.StatusCode == 429:
		return fmt.Sprintf("Rate limit exceeded at %s. Try again shortly.", e.Provider)
	case strings.Contains(msg, "credit") || strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		return fmt.Sprintf("Insufficient credits at %s.", e.Provider)
	case e.StatusCode == 404 || strings.Contains(msg, "model not found") || strings.Contains(msg, "does not exist"):
		return fmt.Sprintf("Model not found at %s. Check LLM_MODEL.", e.Provider)
	case e.StatusCode >= 500:
		return fmt.Sprintf("%s is temporarily unavailable.", e.Provider)
	default:
		return fmt.Sprintf("%s returned an error: %s", e.Provider, e.Message)
	}
}

// StripCodeFence removes a surrounding ```json fence some models add to
// structured replies.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
