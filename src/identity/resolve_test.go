package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name string
		in   Signals
		want Resolution
	}{
		{
			name: "explicit beats every header",
			in:   Signals{Explicit: "carol", HeaderPrimary: "alice", HeaderSecondary: "alice@example.com", EnvDefault: "ops"},
			want: Resolution{ID: "carol", Source: SourceExplicit},
		},
		{
			name: "primary header beats env default",
			in:   Signals{HeaderPrimary: "alice", EnvDefault: "ops"},
			want: Resolution{ID: "alice", Source: SourceHeaderPrimary},
		},
		{
			name: "secondary header used when primary absent",
			in:   Signals{HeaderSecondary: "alice@example.com", EnvDefault: "ops"},
			want: Resolution{ID: "alice@example.com", Source: SourceHeaderSecondary},
		},
		{
			name: "primary and secondary are not merged",
			in:   Signals{HeaderPrimary: "u-42", HeaderSecondary: "alice@example.com"},
			want: Resolution{ID: "u-42", Source: SourceHeaderPrimary},
		},
		{
			name: "env default when no request signal",
			in:   Signals{EnvDefault: "ops"},
			want: Resolution{ID: "ops", Source: SourceEnvDefault},
		},
		{
			name: "fallback when nothing is set",
			in:   Signals{},
			want: Resolution{ID: Fallback, Source: SourceFallback},
		},
		{
			name: "empty header falls through to env default",
			in:   Signals{HeaderPrimary: "", EnvDefault: "default"},
			want: Resolution{ID: "default", Source: SourceEnvDefault},
		},
		{
			name: "whitespace at every tier falls through to fallback",
			in:   Signals{Explicit: "  ", HeaderPrimary: "\t", HeaderSecondary: " \n", EnvDefault: "   "},
			want: Resolution{ID: Fallback, Source: SourceFallback},
		},
		{
			name: "values are trimmed but otherwise verbatim",
			in:   Signals{HeaderPrimary: "  Alice/Ünïcode  "},
			want: Resolution{ID: "Alice/Ünïcode", Source: SourceHeaderPrimary},
		},
		{
			name: "case is preserved",
			in:   Signals{Explicit: "ALICE"},
			want: Resolution{ID: "ALICE", Source: SourceExplicit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.in))
		})
	}
}

func TestResolveIsTotal(t *testing.T) {
	inputs := []string{"", " ", "\t\n", "x"}
	for _, e := range inputs {
		for _, p := range inputs {
			for _, s := range inputs {
				for _, d := range inputs {
					res := Resolve(Signals{Explicit: e, HeaderPrimary: p, HeaderSecondary: s, EnvDefault: d})
					assert.NotEmpty(t, res.ID)
					assert.NotEmpty(t, res.Source)
				}
			}
		}
	}
}

func TestForCall(t *testing.T) {
	bound := WithResolution(context.Background(), Resolution{ID: "alice", Source: SourceHeaderPrimary})

	t.Run("explicit overrides context", func(t *testing.T) {
		assert.Equal(t, Resolution{ID: "bob", Source: SourceExplicit}, ForCall(bound, " bob ", "ops"))
	})
	t.Run("context used when explicit blank", func(t *testing.T) {
		assert.Equal(t, Resolution{ID: "alice", Source: SourceHeaderPrimary}, ForCall(bound, "  ", "ops"))
	})
	t.Run("env default without context", func(t *testing.T) {
		assert.Equal(t, Resolution{ID: "ops", Source: SourceEnvDefault}, ForCall(context.Background(), "", "ops"))
	})
	t.Run("fallback without anything", func(t *testing.T) {
		assert.Equal(t, Resolution{ID: Fallback, Source: SourceFallback}, ForCall(context.Background(), "", ""))
	})
}
