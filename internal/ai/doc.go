// Package ai dispatches generation requests to AI provider backends.
//
// The gateway is a closed set of wire adapters: OpenAI and Groq speak the
// chat-completions shape with bearer auth, while Gemini speaks
// generateContent with a query-string key and no first-class system role.
// Requested models
// are resolved against a per-provider catalog; unknown names silently fall
// back to the provider default.
//
// Rate-limit responses are retried by a generic retry-with-policy wrapper
// (3 retries, linearly increasing delay) independent of the adapters. All
// failures carry a typed Error with one of the codes auth_error,
// rate_limited_exhausted, transport_error, malformed_response.
package ai
