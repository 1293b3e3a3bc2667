// ABOUTME: AIProviderGateway dispatching generation requests to per-provider wire adapters
// ABOUTME: Applies model catalog resolution and the rate-limit retry policy uniformly

package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Turn roles for conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior exchange in the conversation history.
type Turn struct {
	Role    string // RoleUser or RoleAssistant
	Content string
}

// Request describes one generation call.
type Request struct {
	Provider     Provider
	Credential   string
	Model        string
	SystemPrompt string
	Message      string
	History      []Turn // oldest first
	Temperature  float64
}

// Gateway generates a reply for a request.
type Gateway interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// HTTPGateway implements Gateway over the providers' HTTP APIs.
type HTTPGateway struct {
	httpClient *http.Client
	policy     BackoffPolicy
	logger     *slog.Logger

	openaiBaseURL string
	geminiBaseURL string
	groqBaseURL   string
}

// Option customizes an HTTPGateway.
type Option func(*HTTPGateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) { g.httpClient = c }
}

// WithBackoffPolicy overrides the rate-limit retry policy.
func WithBackoffPolicy(p BackoffPolicy) Option {
	return func(g *HTTPGateway) { g.policy = p }
}

// WithOpenAIBaseURL overrides the OpenAI endpoint (used in tests).
func WithOpenAIBaseURL(u string) Option {
	return func(g *HTTPGateway) { g.openaiBaseURL = u }
}

// WithGeminiBaseURL overrides the Gemini endpoint (used in tests).
func WithGeminiBaseURL(u string) Option {
	return func(g *HTTPGateway) { g.geminiBaseURL = u }
}

// WithGroqBaseURL overrides the Groq endpoint (used in tests).
func WithGroqBaseURL(u string) Option {
	return func(g *HTTPGateway) { g.groqBaseURL = u }
}

// NewGateway creates an HTTPGateway with the default endpoints and policy.
func NewGateway(logger *slog.Logger, opts ...Option) *HTTPGateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &HTTPGateway{
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		policy:        DefaultBackoffPolicy(),
		logger:        logger.With("component", "ai"),
		openaiBaseURL: "https://api.openai.com/v1",
		geminiBaseURL: "https://generativelanguage.googleapis.com",
		groqBaseURL:   "https://api.groq.com/openai/v1",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate resolves the model through the catalog, picks the wire adapter
// for the provider, and runs it under the retry policy. Only rate-limit
// errors are retried; everything else surfaces immediately.
func (g *HTTPGateway) Generate(ctx context.Context, req Request) (string, error) {
	if !KnownProvider(req.Provider) {
		return "", fmt.Errorf("unsupported provider %q", req.Provider)
	}
	req.Model = ResolveModel(req.Provider, req.Model)

	var call func(context.Context) (string, error)
	switch req.Provider {
	case ProviderOpenAI:
		call = func(ctx context.Context) (string, error) { return g.generateOpenAI(ctx, req) }
	case ProviderGemini:
		call = func(ctx context.Context) (string, error) { return g.generateGemini(ctx, req) }
	case ProviderGroq:
		call = func(ctx context.Context) (string, error) { return g.generateGroq(ctx, req) }
	}

	g.logger.Debug("dispatching generation",
		"provider", req.Provider,
		"model", req.Model,
		"history_len", len(req.History),
	)
	return retryWithPolicy(ctx, g.policy, g.logger, call)
}

// styleDirective is appended to every caller-supplied system prompt before
// transmission. Replies should read like a person typing on their phone,
// not like an assistant.
const styleDirective = "\n\nIMPORTANT: You are chatting as a HUMAN in a messaging app. Absolute rules:\n" +
	"1. Keep replies SHORT (one or two sentences at most).\n" +
	"2. No bullet lists, no formal tone.\n" +
	"3. Write the way people talk; skip greetings and get to the point.\n" +
	"4. If the answer is simple, three words are enough.\n" +
	"5. NEVER say you are an AI or automated."
