package identity

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromHTTPHeader(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string][]string
		want    Signals
	}{
		{
			name: "no headers",
			want: Signals{},
		},
		{
			name:    "primary only",
			headers: map[string][]string{HeaderUserID: {"alice"}},
			want:    Signals{HeaderPrimary: "alice"},
		},
		{
			name:    "both tiers kept apart",
			headers: map[string][]string{HeaderUserID: {"u-1"}, HeaderUserEmail: {"alice@example.com"}},
			want:    Signals{HeaderPrimary: "u-1", HeaderSecondary: "alice@example.com"},
		},
		{
			name:    "librechat alias fills the secondary tier",
			headers: map[string][]string{HeaderLibreChatUserID: {"lc-9"}},
			want:    Signals{HeaderSecondary: "lc-9"},
		},
		{
			name:    "email wins over librechat alias",
			headers: map[string][]string{HeaderUserEmail: {"a@b.c"}, HeaderLibreChatUserID: {"lc-9"}},
			want:    Signals{HeaderSecondary: "a@b.c"},
		},
		{
			name:    "blank values skipped within a header",
			headers: map[string][]string{HeaderUserID: {"  ", "alice"}},
			want:    Signals{HeaderPrimary: "alice"},
		},
		{
			name:    "whitespace-only header is absent",
			headers: map[string][]string{HeaderUserID: {"   "}},
			want:    Signals{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, vs := range tt.headers {
				for _, v := range vs {
					h.Add(k, v)
				}
			}
			got, err := ExtractFromHTTPHeader(h, DefaultHeaderNames())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractFromHTTPHeaderNil(t *testing.T) {
	got, err := ExtractFromHTTPHeader(nil, DefaultHeaderNames())
	require.NoError(t, err)
	assert.Equal(t, Signals{}, got)
}

func TestExtractMalformedHeaderDegradesToAbsent(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderUserID, "bad\xff\xfe")
	h.Set(HeaderUserEmail, "alice@example.com")

	got, err := ExtractFromHTTPHeader(h, DefaultHeaderNames())
	assert.ErrorIs(t, err, ErrMalformedSignal)
	assert.Equal(t, Signals{HeaderSecondary: "alice@example.com"}, got)
	assert.Equal(t, Resolution{ID: "alice@example.com", Source: SourceHeaderSecondary}, Resolve(got))
}

func TestExtractExplicit(t *testing.T) {
	assert.Equal(t, "alice", ExtractExplicit(map[string]any{ArgumentUserID: " alice "}))
	assert.Empty(t, ExtractExplicit(map[string]any{ArgumentUserID: "  "}))
	assert.Empty(t, ExtractExplicit(map[string]any{ArgumentUserID: 42}))
	assert.Empty(t, ExtractExplicit(map[string]any{}))
	assert.Empty(t, ExtractExplicit(nil))
}
