// ABOUTME: Tests for the provider wire adapters using httptest backends
// ABOUTME: Validates request shapes, auth schemes, error classification, and retry integration

package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noRetry() BackoffPolicy {
	return BackoffPolicy{MaxRetries: 0, Delay: func(int) time.Duration { return 0 }}
}

func fastRetry(max int) BackoffPolicy {
	return BackoffPolicy{MaxRetries: max, Delay: func(int) time.Duration { return time.Millisecond }}
}

func TestGenerateOpenAI(t *testing.T) {
	t.Run("request shape and response parsing", func(t *testing.T) {
		var captured chatCompletionRequest
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.Equal(t, "/chat/completions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"role": "assistant", "content": "Hey! How can I help?"}},
				},
			})
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithOpenAIBaseURL(srv.URL), WithBackoffPolicy(noRetry()))
		text, err := g.Generate(context.Background(), Request{
			Provider:     ProviderOpenAI,
			Credential:   "sk-test",
			Model:        "gpt-4",
			SystemPrompt: "Be brief.",
			Message:      "Hi",
			History: []Turn{
				{Role: RoleUser, Content: "earlier question"},
				{Role: RoleAssistant, Content: "earlier answer"},
			},
			Temperature: 0.7,
		})
		require.NoError(t, err)
		assert.Equal(t, "Hey! How can I help?", text)

		assert.Equal(t, "Bearer sk-test", gotAuth)
		assert.Equal(t, "gpt-4", captured.Model)
		require.Len(t, captured.Messages, 4)
		assert.Equal(t, "system", captured.Messages[0].Role)
		assert.Equal(t, "Be brief.", captured.Messages[0].Content)
		assert.Equal(t, "earlier question", captured.Messages[1].Content)
		assert.Equal(t, "assistant", captured.Messages[2].Role)
		assert.Equal(t, "Hi", captured.Messages[3].Content)
	})

	t.Run("unknown model replaced with default", func(t *testing.T) {
		var captured chatCompletionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&captured)
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
			})
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithOpenAIBaseURL(srv.URL), WithBackoffPolicy(noRetry()))
		_, err := g.Generate(context.Background(), Request{
			Provider: ProviderOpenAI, Credential: "sk", Model: "gpt-99", Message: "Hi",
		})
		require.NoError(t, err)
		assert.Equal(t, "gpt-3.5-turbo", captured.Model)
	})

	t.Run("auth failure classified without retry", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithOpenAIBaseURL(srv.URL), WithBackoffPolicy(fastRetry(3)))
		_, err := g.Generate(context.Background(), Request{Provider: ProviderOpenAI, Credential: "bad", Message: "Hi"})
		require.Error(t, err)
		assert.True(t, IsAuthError(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("empty choices is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithOpenAIBaseURL(srv.URL), WithBackoffPolicy(noRetry()))
		_, err := g.Generate(context.Background(), Request{Provider: ProviderOpenAI, Credential: "sk", Message: "Hi"})
		assert.True(t, IsMalformedResponse(err))
	})

	t.Run("rate limit retried then exhausted", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithOpenAIBaseURL(srv.URL), WithBackoffPolicy(fastRetry(3)))
		_, err := g.Generate(context.Background(), Request{Provider: ProviderOpenAI, Credential: "sk", Message: "Hi"})
		require.Error(t, err)
		assert.True(t, IsRateLimitExhausted(err))
		assert.Equal(t, 4, calls)
	})
}

func TestGenerateGemini(t *testing.T) {
	t.Run("request shape, key auth, and synthetic system exchange", func(t *testing.T) {
		var captured geminiRequest
		var gotPath, gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.URL.Query().Get("key")
			assert.Empty(t, r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]string{{"text": "sure"}}}},
				},
			})
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithGeminiBaseURL(srv.URL), WithBackoffPolicy(noRetry()))
		text, err := g.Generate(context.Background(), Request{
			Provider:     ProviderGemini,
			Credential:   "gk-test",
			Model:        "gemini-1.5",
			SystemPrompt: "Answer as a pirate.",
			Message:      "Hi",
			History: []Turn{
				{Role: RoleUser, Content: "ahoy"},
				{Role: RoleAssistant, Content: "ahoy back"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "sure", text)

		assert.Equal(t, "/v1beta/models/gemini-1.5:generateContent", gotPath)
		assert.Equal(t, "gk-test", gotKey)

		// system prompt rides in as a synthetic user/model exchange with
		// the style directive appended
		require.Len(t, captured.Contents, 5)
		assert.Equal(t, "user", captured.Contents[0].Role)
		assert.Contains(t, captured.Contents[0].Parts[0].Text, "Answer as a pirate.")
		assert.Contains(t, captured.Contents[0].Parts[0].Text, "NEVER say you are an AI")
		assert.Equal(t, "model", captured.Contents[1].Role)
		assert.Equal(t, "Ok.", captured.Contents[1].Parts[0].Text)

		// history maps assistant turns to the "model" role
		assert.Equal(t, "user", captured.Contents[2].Role)
		assert.Equal(t, "model", captured.Contents[3].Role)
		assert.Equal(t, "Hi", captured.Contents[4].Parts[0].Text)
	})

	t.Run("no system prompt means no synthetic exchange", func(t *testing.T) {
		var captured geminiRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&captured)
			json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]string{{"text": "hi"}}}},
				},
			})
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithGeminiBaseURL(srv.URL), WithBackoffPolicy(noRetry()))
		_, err := g.Generate(context.Background(), Request{Provider: ProviderGemini, Credential: "gk", Message: "Hi"})
		require.NoError(t, err)
		require.Len(t, captured.Contents, 1)
		assert.Equal(t, "user", captured.Contents[0].Role)
	})

	t.Run("no candidates is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithGeminiBaseURL(srv.URL), WithBackoffPolicy(noRetry()))
		_, err := g.Generate(context.Background(), Request{Provider: ProviderGemini, Credential: "gk", Message: "Hi"})
		assert.True(t, IsMalformedResponse(err))
	})
}

func TestGenerateGroq(t *testing.T) {
	t.Run("openai-compatible shape with groq catalog and style directive", func(t *testing.T) {
		var captured chatCompletionRequest
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"content": "yo"}}},
			})
		}))
		defer srv.Close()

		g := NewGateway(slog.Default(), WithGroqBaseURL(srv.URL), WithBackoffPolicy(noRetry()))
		text, err := g.Generate(context.Background(), Request{
			Provider:     ProviderGroq,
			Credential:   "gsk-test",
			Model:        "does-not-exist",
			SystemPrompt: "Be helpful.",
			Message:      "Hi",
		})
		require.NoError(t, err)
		assert.Equal(t, "yo", text)

		assert.Equal(t, "Bearer gsk-test", gotAuth)
		assert.Equal(t, "llama-3.3-70b-versatile", captured.Model)
		assert.Equal(t, 1024, captured.MaxTokens)
		require.True(t, len(captured.Messages) >= 2)
		assert.Equal(t, "system", captured.Messages[0].Role)
		assert.True(t, strings.HasPrefix(captured.Messages[0].Content, "Be helpful."))
		assert.Contains(t, captured.Messages[0].Content, "NEVER say you are an AI")
	})
}

func TestGenerateUnknownProvider(t *testing.T) {
	g := NewGateway(slog.Default())
	_, err := g.Generate(context.Background(), Request{Provider: "cohere", Message: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}
