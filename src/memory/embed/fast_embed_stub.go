//go:build !fastembed

package embed

import (
	"context"
	"errors"
)

var errFastEmbedMissing = errors.New("fastembed support not included; rebuild with -tags fastembed")

func defaultFastEmbedOptions() *Options { return nil }

func NewFastEmbeed(context.Context, *Options) (Embedder, error) {
	return nil, errFastEmbedMissing
}
