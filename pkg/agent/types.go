package agent

import (
	"strings"
	"time"
)

// Message is one entry of a session's conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	// ToolName names the tool a "tool" message answers; gemini needs it
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall represents a tool invocation requested by the model
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Config configures the agent loop
type Config struct {
	Temperature  float64 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens    int     `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	SystemPrompt string  `json:"system_prompt,omitempty" mapstructure:"system_prompt"`
	MaxRetries   int     `json:"max_retries,omitempty" mapstructure:"max_retries"`

	// MaxTurns bounds provider round trips within one prompt
	MaxTurns int `json:"max_turns,omitempty" mapstructure:"max_turns"`

	// ContextTokens is the estimated history size that triggers compaction
	ContextTokens int `json:"context_tokens,omitempty" mapstructure:"context_tokens"`

	// RetryBackoff is the first retry delay; it doubles per attempt
	RetryBackoff time.Duration `json:"retry_backoff,omitempty" mapstructure:"retry_backoff"`
}

const defaultSystemPrompt = "You are a coding agent. Use the available tools to inspect and change the workspace, and keep answers short."

// DefaultConfig returns default agent configuration
func DefaultConfig() Config {
	return Config{
		MaxTokens:     8192,
		MaxRetries:    3,
		MaxTurns:      50,
		ContextTokens: 100000,
		RetryBackoff:  time.Second,
		SystemPrompt:  defaultSystemPrompt,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = d.MaxTurns
	}
	if c.ContextTokens <= 0 {
		c.ContextTokens = d.ContextTokens
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	return c
}

var retryableMarkers = []string{
	"econnreset", "etimedout", "connection reset", "timeout awaiting",
	"429", "rate limit", "overloaded",
	"500", "502", "503", "504", "529",
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// EstimateTokens provides a rough token count estimation
func EstimateTokens(messages []Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
		for _, tc := range msg.ToolCalls {
			totalChars += len(tc.Name)
			for k, v := range tc.Parameters {
				if s, ok := v.(string); ok {
					totalChars += len(k) + len(s)
				}
			}
		}
	}
	// Rough estimation: 1 token ≈ 4 characters
	return (totalChars + 3) / 4
}
