package identity

import (
	"context"
	"strings"
)

// Resolve applies the precedence policy to s. It never fails: when every
// tier is empty or whitespace-only the Fallback identity is returned.
func Resolve(s Signals) Resolution {
	tiers := [...]struct {
		source Source
		value  string
	}{
		{SourceExplicit, s.Explicit},
		{SourceHeaderPrimary, s.HeaderPrimary},
		{SourceHeaderSecondary, s.HeaderSecondary},
		{SourceEnvDefault, s.EnvDefault},
	}
	for _, tier := range tiers {
		if v := strings.TrimSpace(tier.value); v != "" {
			return Resolution{ID: v, Source: tier.source}
		}
	}
	return Resolution{ID: Fallback, Source: SourceFallback}
}

// ForCall is the handler-side resolution step. The header tiers were
// consumed upstream, so the value bound in ctx takes their place:
// explicit > context > envDefault > Fallback.
func ForCall(ctx context.Context, explicit, envDefault string) Resolution {
	if v := strings.TrimSpace(explicit); v != "" {
		return Resolution{ID: v, Source: SourceExplicit}
	}
	if res, ok := FromContext(ctx); ok {
		return res
	}
	return Resolve(Signals{EnvDefault: envDefault})
}
