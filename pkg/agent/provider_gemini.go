package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/harun/codelet/pkg/facade"
)

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return string(facade.Gemini)
}

// Call makes an API call to Gemini
func (p *GeminiProvider) Call(ctx context.Context, request Request) (*Response, error) {
	config := &genai.GenerateContentConfig{}
	if request.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemPrompt, genai.RoleUser)
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(request.Temperature))
	}
	if len(request.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(request.Tools))
		for _, def := range request.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 def.Name,
				Description:          def.Description,
				ParametersJsonSchema: def.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := p.client.Models.GenerateContent(ctx, request.Model, geminiContents(request.Messages), config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	out := &Response{ToolCalls: []ToolCall{}}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" && !part.Thought {
				out.Content += part.Text
			}
			if part.FunctionCall != nil {
				out.ToolCalls = append(out.ToolCalls, ToolCall{
					ID:         part.FunctionCall.ID,
					Name:       part.FunctionCall.Name,
					Parameters: part.FunctionCall.Args,
				})
			}
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage = &TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// geminiContents converts the history. Tool results go back as user turns
// carrying function responses, grouped like the calls that produced them.
func geminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	var results *genai.Content

	flush := func() {
		if results != nil {
			contents = append(contents, results)
			results = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == "tool" {
			if results == nil {
				results = &genai.Content{Role: genai.RoleUser}
			}
			results.Parts = append(results.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.ToolName,
					Response: map[string]any{"output": msg.Content},
				},
			})
			continue
		}
		flush()

		switch msg.Role {
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			content := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Parameters,
					},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		}
	}
	flush()
	return contents
}
