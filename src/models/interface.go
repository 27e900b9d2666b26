package models

import (
	"context"
	"fmt"
	"strings"
)

// LLM is a single-turn text completion model.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL points openai at a compatible gateway, ollama at its host and
	// anthropic at a proxy.
	BaseURL string
}

// New builds the configured provider.
func New(ctx context.Context, cfg Config) (LLM, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAILLM(cfg.Model, cfg.APIKey, cfg.BaseURL), nil
	case "anthropic":
		return NewAnthropicLLM(cfg.Model, cfg.APIKey, cfg.BaseURL), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, cfg.Model, cfg.APIKey)
	case "ollama":
		return NewOllamaLLM(cfg.Model, cfg.BaseURL)
	case "dummy":
		return NewDummyLLM(), nil
	default:
		return nil, fmt.Errorf("models: unknown provider %q", cfg.Provider)
	}
}
