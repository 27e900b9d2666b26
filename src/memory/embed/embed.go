package embed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that do not offer embeddings.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// DefaultDummyDims is used when a DummyEmbedder has no size set.
const DefaultDummyDims = 768

// DummyEmbedder hashes lowercase word tokens into a fixed-size bag of words,
// so texts sharing words land close together. Deterministic and offline.
type DummyEmbedder struct {
	Dims int
}

func (d DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text, d.Dims), nil
}

func DummyEmbedding(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultDummyDims
	}
	vec := make([]float32, dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Config selects and tunes a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Dims     int
	// CacheSize > 0 wraps the provider in a CachedEmbedder.
	CacheSize int
}

// New builds the configured provider. Unknown providers are an error rather
// than a silent fallback, since vectors from different providers are not
// comparable.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		e, err = NewOpenAIEmbedder(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Dims)
	case "ollama":
		e, err = NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	case "gemini", "google":
		e, err = NewGeminiEmbedder(ctx, cfg.Model, cfg.APIKey)
	case "voyage":
		e, err = NewVoyageEmbedder(cfg.Model, cfg.APIKey, cfg.BaseURL)
	case "fastembed":
		e, err = NewFastEmbeed(ctx, defaultFastEmbedOptions())
	case "dummy":
		e = DummyEmbedder{Dims: cfg.Dims}
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embed: %s: %w", cfg.Provider, err)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
