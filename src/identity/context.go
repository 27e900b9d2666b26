package identity

import (
	"context"
	"strings"
)

type contextKey struct{}

// WithResolution binds res to a child of ctx. A zero or whitespace-only
// resolution leaves ctx untouched.
func WithResolution(ctx context.Context, res Resolution) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	res.ID = strings.TrimSpace(res.ID)
	if res.ID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, res)
}

// FromContext returns the resolution bound to ctx, if any.
func FromContext(ctx context.Context) (Resolution, bool) {
	if ctx == nil {
		return Resolution{}, false
	}
	res, ok := ctx.Value(contextKey{}).(Resolution)
	if !ok || res.IsZero() {
		return Resolution{}, false
	}
	return res, true
}

// UserID returns the identity bound to ctx, or an empty string.
func UserID(ctx context.Context) string {
	res, _ := FromContext(ctx)
	return res.ID
}
