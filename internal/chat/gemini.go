package chat

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"aiaudit/internal/session"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.0-flash",
	"gemini-pro":   "gemini-2.0-pro",
}

// GeminiConfig configures GeminiProvider.
type GeminiConfig struct {
	APIKey            string
	Model             string
	MaxOutputTokens   int
	SystemInstruction string
}

// GeminiProvider answers through the Google Gemini API.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int32
	system    string
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &GeminiProvider{
		client:    client,
		model:     resolveModel(cfg.Model),
		maxTokens: int32(cfg.MaxOutputTokens),
		system:    cfg.SystemInstruction,
	}, nil
}

func resolveModel(name string) string {
	if name == "" {
		return DefaultGeminiModel
	}
	if id, ok := geminiModels[name]; ok {
		return id
	}
	return name
}

// Name returns the resolved model id.
func (p *GeminiProvider) Name() string { return p.model }

func (p *GeminiProvider) Reply(ctx context.Context, history []Message, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if p.maxTokens > 0 {
		config.MaxOutputTokens = p.maxTokens
	}
	if p.system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: p.system}},
		}
	}

	contents := buildGeminiContents(history, prompt)
	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", mapGeminiError(err)
	}
	return result.Text(), nil
}

func buildGeminiContents(history []Message, prompt string) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == session.RoleModel {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	return append(out, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	})
}

func mapGeminiError(err error) error {
	pe := &ProviderError{Provider: "gemini", Err: err}
	// The client returns APIError by value.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.Code
		return pe
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		pe.Code = apiErrPtr.Code
	}
	return pe
}
