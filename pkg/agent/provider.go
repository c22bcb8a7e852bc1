package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/codelet/pkg/facade"
)

// ErrMissingAPIKey is returned when a provider has no credentials configured
var ErrMissingAPIKey = errors.New("missing API key")

// Provider is an LLM API backend
type Provider interface {
	// Call makes one LLM API call
	Call(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Request contains the request parameters for one LLM call
type Request struct {
	Model        string
	Messages     []Message
	Tools        []facade.Definition
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response contains the response from the LLM
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// Credentials configures access to one provider
type Credentials struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Model   string `json:"model,omitempty" mapstructure:"model"`
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`
}

// DefaultModels is the model used when neither the session nor the
// credentials name one.
var DefaultModels = map[facade.Provider]string{
	facade.Claude: "claude-sonnet-4-5",
	facade.OpenAI: "gpt-4o",
	facade.Gemini: "gemini-2.5-flash",
	facade.ZAI:    "glm-4.6",
}

// ProviderFunc builds a provider; tests swap in fakes through it
type ProviderFunc func(ctx context.Context, p facade.Provider, creds Credentials) (Provider, error)

// NewProvider creates the API client for p
func NewProvider(ctx context.Context, p facade.Provider, creds Credentials) (Provider, error) {
	if creds.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", p, ErrMissingAPIKey)
	}
	switch p {
	case facade.Claude:
		return NewAnthropicProvider(creds.APIKey, creds.BaseURL), nil
	case facade.OpenAI:
		return NewOpenAIProvider(creds.APIKey, creds.BaseURL), nil
	case facade.ZAI:
		return NewZAIProvider(creds.APIKey, creds.BaseURL), nil
	case facade.Gemini:
		return NewGeminiProvider(ctx, creds.APIKey)
	default:
		return nil, fmt.Errorf("%w: %q", facade.ErrUnknownProvider, p)
	}
}
