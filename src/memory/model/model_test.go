package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"empty", nil, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch uses prefix", []float32{1, 0, 5}, []float32{1, 0}, 1},
	}
	for _, tc := range cases {
		got := CosineSimilarity(tc.a, tc.b)
		assert.InDelta(t, tc.want, got, 1e-9, tc.name)
		assert.False(t, math.IsNaN(got), tc.name)
	}
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", ContentHash("hello"))
	assert.NotEqual(t, ContentHash("hello"), ContentHash("hello "))
}

func TestCloneDoesNotShare(t *testing.T) {
	rec := MemoryRecord{
		ID:        "a",
		Metadata:  map[string]any{"k": "v"},
		Embedding: []float32{1, 2},
	}
	cp := rec.Clone()
	cp.Metadata["k"] = "changed"
	cp.Embedding[0] = 9

	assert.Equal(t, "v", rec.Metadata["k"])
	assert.Equal(t, float32(1), rec.Embedding[0])
}

func TestRecordJSONShape(t *testing.T) {
	rec := MemoryRecord{
		ID:        "id-1",
		UserID:    "alice",
		Content:   "likes tea",
		Embedding: []float32{0.1},
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "likes tea", out["memory"])
	assert.NotContains(t, out, "embedding")
	assert.NotContains(t, out, "score")
}
