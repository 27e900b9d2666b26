package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

type OllamaLLM struct {
	Client *ollama.Client
	Model  string
}

// NewOllamaLLM uses host, then OLLAMA_HOST, then the local default.
func NewOllamaLLM(model, host string) (*OllamaLLM, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	if model == "" {
		model = "llama3.1"
	}
	c := ollama.NewClient(u, &http.Client{Timeout: 120 * time.Second})
	return &OllamaLLM{Client: c, Model: model}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var text strings.Builder
	err := o.Client.Generate(ctx, &ollama.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp ollama.GenerateResponse) error {
		text.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text.String(), nil
}
