// ABOUTME: Supported model catalog and defaults per AI provider
// ABOUTME: Unknown or missing models resolve to the provider default, never to an error

package ai

// Provider identifies one AI backend wire protocol.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderGroq   Provider = "groq"
)

var supportedModels = map[Provider][]string{
	ProviderOpenAI: {
		"gpt-3.5-turbo",
		"gpt-4",
	},
	ProviderGemini: {
		"gemini-flash-latest",
		"gemini-1.5",
	},
	ProviderGroq: {
		"llama-3.3-70b-versatile",
		"llama-3.3-70b-instruct",
		"llama-3.3-16b",
	},
}

var defaultModels = map[Provider]string{
	ProviderOpenAI: "gpt-3.5-turbo",
	ProviderGemini: "gemini-flash-latest",
	ProviderGroq:   "llama-3.3-70b-versatile",
}

// KnownProvider reports whether p names a supported backend.
func KnownProvider(p Provider) bool {
	_, ok := defaultModels[p]
	return ok
}

// Providers lists the supported backends.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderGemini, ProviderGroq}
}

// SupportedModels returns the catalog for a provider.
func SupportedModels(p Provider) []string {
	models := supportedModels[p]
	out := make([]string, len(models))
	copy(out, models)
	return out
}

// DefaultModel returns a provider's documented default model.
func DefaultModel(p Provider) string {
	return defaultModels[p]
}

// ResolveModel returns model if the provider's catalog lists it, otherwise
// the provider default. A request is never failed solely for an unknown
// model name.
func ResolveModel(p Provider, model string) string {
	for _, m := range supportedModels[p] {
		if m == model {
			return model
		}
	}
	return defaultModels[p]
}
