package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnthropicClient(t *testing.T) {
	_, err := newAnthropicClient(Config{})
	require.Error(t, err)

	client, err := newAnthropicClient(Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, anthropicEndpoint, client.endpoint)
	assert.Equal(t, 300, client.maxTokens)
}

func TestAnthropicClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "system prompt", body.System)
		assert.Equal(t, 50, body.MaxTokens)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "hello", body.Messages[0].Content)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "claude-3-5-haiku-latest",
			"content": []map[string]string{
				{"type": "text", "text": "שלום "},
				{"type": "text", "text": "לך"},
			},
		})
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{System: "system prompt", Prompt: "hello", MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, "שלום לך", resp.Text)
	assert.Equal(t, "claude-3-5-haiku-latest", resp.Model)
}

func TestAnthropicClient_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Prompt: "x"})
	assert.Error(t, err)
}
