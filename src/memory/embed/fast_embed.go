//go:build fastembed

package embed

import (
	"context"
	"fmt"
	"runtime"

	fastembed "github.com/anush008/fastembed-go"
)

type FastEmbedder struct {
	m  *fastembed.FlagEmbedding
	bs int
}

func defaultFastEmbedOptions() *Options {
	return &Options{
		Model:     string(fastembed.BGESmallENV15),
		CacheDir:  ".fastembed",
		BatchSize: 64,
	}
}

func NewFastEmbeed(_ context.Context, opt *Options) (Embedder, error) {
	var init *fastembed.InitOptions
	if opt != nil {
		init = &fastembed.InitOptions{
			Model:     fastembed.EmbeddingModel(opt.Model),
			CacheDir:  opt.CacheDir,
			MaxLength: opt.MaxLength,
		}
	}
	m, err := fastembed.NewFlagEmbedding(init)
	if err != nil {
		return nil, err
	}
	bs := 64
	if opt != nil && opt.BatchSize > 0 {
		bs = opt.BatchSize
	}
	bs = min(bs, 4*runtime.GOMAXPROCS(0))
	return &FastEmbedder{m: m, bs: bs}, nil
}

func (e *FastEmbedder) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}

// EmbedPassages embeds stored documents with the "passage: " prefix the
// model was trained on.
func (e *FastEmbedder) EmbedPassages(_ context.Context, docs []string) ([][]float32, error) {
	inputs := make([]string, len(docs))
	for i, d := range docs {
		inputs[i] = "passage: " + d
	}
	out, err := e.m.PassageEmbed(inputs, e.bs)
	if err != nil {
		return nil, fmt.Errorf("passage embed: %w", err)
	}
	return out, nil
}

func (e *FastEmbedder) Embed(_ context.Context, q string) ([]float32, error) {
	return e.m.QueryEmbed(q)
}
