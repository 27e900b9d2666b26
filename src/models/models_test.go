package models

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDummyLLMExtractsSentences(t *testing.T) {
	out, err := NewDummyLLM().Generate(context.Background(), "Extract facts.\nInput: I live in Oslo. I like tea!")
	require.NoError(t, err)

	var parsed struct {
		Facts []string `json:"facts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, []string{"I live in Oslo", "I like tea"}, parsed.Facts)
}

func TestDummyLLMEmptyInput(t *testing.T) {
	out, err := NewDummyLLM().Generate(context.Background(), "Input:   ")
	require.NoError(t, err)
	assert.JSONEq(t, `{"facts":[]}`, out)
}

func TestNewFactory(t *testing.T) {
	llm, err := New(context.Background(), Config{Provider: "DUMMY"})
	require.NoError(t, err)
	assert.IsType(t, &DummyLLM{}, llm)

	llm, err = New(context.Background(), Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", llm.(*OpenAILLM).Model)

	_, err = New(context.Background(), Config{Provider: "cohere"})
	assert.ErrorContains(t, err, "unknown provider")
}

func TestOpenAILLMAgainstCompatibleGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "my-model", req["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAILLM("my-model", "k", srv.URL+"/v1").Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestAnthropicLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
"content":[{"type":"text","text":"fact one"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	out, err := NewAnthropicLLM("", "ak", srv.URL).Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "fact one", out)
}

func TestOllamaLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, false, req["stream"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"ok","done":true}`))
	}))
	defer srv.Close()

	llm, err := NewOllamaLLM("", srv.URL)
	require.NoError(t, err)
	out, err := llm.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGeminiRequiresKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	_, err := NewGeminiLLM(context.Background(), "", "")
	assert.Error(t, err)
}
