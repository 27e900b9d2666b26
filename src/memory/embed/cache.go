package embed

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder memoises vectors by exact text and collapses concurrent
// requests for the same text into one upstream call.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

func NewCachedEmbedder(next Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embed cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Embed serves text from the cache or joins the in-flight upstream call for
// it. The upstream call is detached from the cancellation of the caller that
// started it, so one caller giving up never fails the others waiting on the
// same text; each caller still returns as soon as its own ctx is done.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return clone(vec), nil
	}
	ch := c.group.DoChan(text, func() (any, error) {
		vec, err := c.next.Embed(context.WithoutCancel(ctx), text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(text, clone(vec))
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]float32)), nil
	}
}

// Len reports how many vectors are cached.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// Close closes the wrapped provider when it holds resources.
func (c *CachedEmbedder) Close() error {
	if closer, ok := c.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func clone(vec []float32) []float32 {
	return append([]float32(nil), vec...)
}
