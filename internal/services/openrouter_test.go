package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenRouterClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOpenRouterClient("test-key")
	client.BaseURL = server.URL
	client.Referer = "https://fitcheck.example.com"
	client.AppTitle = "Outfit Fitcheck"
	return client
}

func completionResponse(content string, tokens int) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"total_tokens": tokens},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestCreateChatCompletion(t *testing.T) {
	t.Run("sends auth and attribution headers", func(t *testing.T) {
		var gotReq ChatRequest
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "https://fitcheck.example.com", r.Header.Get("HTTP-Referer"))
			assert.Equal(t, "Outfit Fitcheck", r.Header.Get("X-Title"))

			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.Write([]byte(completionResponse("hello", 12)))
		})

		comp, err := client.CreateChatCompletion(context.Background(), ChatRequest{
			Model:     "test/model",
			MaxTokens: 100,
			Messages:  []ChatMessage{TextMessage("user", "hi")},
		})
		require.NoError(t, err)

		assert.Equal(t, "hello", comp.Content)
		assert.Equal(t, 12, comp.TokensUsed)
		assert.Equal(t, "test/model", gotReq.Model)
		assert.Equal(t, 100, gotReq.MaxTokens)
	})

	t.Run("missing api key fails before any request", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
		})
		client.APIKey = ""

		_, err := client.CreateChatCompletion(context.Background(), ChatRequest{})
		require.ErrorIs(t, err, ErrAPIKeyMissing)
		assert.Equal(t, 0, calls)
	})

	t.Run("non-200 response", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("rate limited"))
		})

		_, err := client.CreateChatCompletion(context.Background(), ChatRequest{})
		var upstreamErr *UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, http.StatusTooManyRequests, upstreamErr.StatusCode)
		assert.Equal(t, "rate limited", upstreamErr.Body)
	})

	t.Run("empty choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[],"usage":{"total_tokens":0}}`))
		})

		_, err := client.CreateChatCompletion(context.Background(), ChatRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no response choices")
	})

	t.Run("multimodal message encodes image part", func(t *testing.T) {
		msg := ImageMessage("user", "Describe the visible outfit.", "data:image/png;base64,AAAA")
		b, err := json.Marshal(msg)
		require.NoError(t, err)

		assert.Contains(t, string(b), `"type":"image_url"`)
		assert.Contains(t, string(b), `"url":"data:image/png;base64,AAAA"`)
	})
}
