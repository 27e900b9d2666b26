package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const voyageEndpoint = "https://api.voyageai.com/v1/embeddings"

// VoyageEmbedder calls Voyage AI, the embedding service Anthropic
// recommends. Used when the chat provider is anthropic.
type VoyageEmbedder struct {
	client   *http.Client
	apiKey   string
	model    string
	endpoint string
}

func NewVoyageEmbedder(model, apiKey, endpoint string) (Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("VOYAGE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("VOYAGE_API_KEY not set; Anthropic does not offer first-party embeddings")
	}
	if model == "" {
		model = "voyage-3.5"
	}
	if endpoint == "" {
		endpoint = voyageEndpoint
	}
	return &VoyageEmbedder{
		client:   &http.Client{Timeout: 60 * time.Second},
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
	}, nil
}

func (c *VoyageEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"input":      []string{text},
		"model":      c.model,
		"input_type": "document",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("voyage embeddings HTTP %d: %s", resp.StatusCode, string(slurp))
	}

	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, ErrNotSupported
	}
	return f64toF32(out.Data[0].Embedding), nil
}

func f64toF32(v []float64) []float32 {
	r := make([]float32, len(v))
	for i, x := range v {
		r[i] = float32(x)
	}
	return r
}
