package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_Generate(t *testing.T) {
	var calls atomic.Int32
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "google/flan-t5-small",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Alice"}}]
		}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("hf_test", server.URL+"/v1", "google/flan-t5-small", "", 100, server.Client())
	answer, err := p.Generate(context.Background(), "Context:\nName: Alice\n\nQuestion: Who?\nAnswer:")
	require.NoError(t, err)
	assert.Equal(t, "Alice", answer)
	assert.Equal(t, "google/flan-t5-small", body["model"])
	assert.EqualValues(t, 100, body["max_tokens"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_GenerateDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "model is loading"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("hf_test", server.URL, "m", "", 100, server.Client())
	_, err := p.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// Reihenfolge absichtlich vertauscht
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.0, 1.0]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("key", server.URL, "m", "text-embedding-3-small", 0, server.Client())
	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}
