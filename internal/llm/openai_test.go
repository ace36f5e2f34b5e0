package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	}, zap.NewNop())
}

func TestOpenAIGenerate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}],"usage":{"total_tokens":12}}`))
	})

	got, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOpenAIGenerateRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached. Please try again in 4.5s."}}`))
	})

	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 4500*time.Millisecond, rl.RetryAfter)
}

func TestOpenAIGenerateServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	var gen *GenerationError
	require.ErrorAs(t, err, &gen)
	var rl *RateLimitError
	assert.False(t, errors.As(err, &rl), "server errors are not rate-limit errors")
}

func TestOpenAIGenerateNoKey(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{}, zap.NewNop())
	_, err := client.Generate(context.Background(), Request{Prompt: "hi"})
	var gen *GenerationError
	require.ErrorAs(t, err, &gen)
}
