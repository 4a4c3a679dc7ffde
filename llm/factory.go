// LLM Provider Factory - routes candidate model identifiers to providers.
//
// Candidate lists mix models from different backends ("gpt-4o" falling
// back to "claude-sonnet-4-20250514"), so resolution happens per model
// identifier, not per process.

package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// ProviderTypeForModel infers the backend from a model identifier.
func ProviderTypeForModel(modelID string) (ProviderType, error) {
	id := strings.ToLower(modelID)
	switch {
	case strings.HasPrefix(id, "gpt") || strings.HasPrefix(id, "o1") || strings.HasPrefix(id, "o3"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(id, "claude"):
		return ProviderAnthropic, nil
	case strings.HasPrefix(id, "deepseek"):
		return ProviderDeepSeek, nil
	case strings.HasPrefix(id, "gemini"):
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("cannot infer provider for model %q", modelID)
	}
}

// Resolver maps model identifiers to providers, creating one client per
// backend on first use. Safe for concurrent use.
type Resolver struct {
	mu        sync.Mutex
	providers map[ProviderType]Provider
	apiKeys   map[ProviderType]string
}

// NewResolver creates a resolver that reads API keys from the environment.
func NewResolver() *Resolver {
	return &Resolver{
		providers: make(map[ProviderType]Provider),
		apiKeys:   make(map[ProviderType]string),
	}
}

// WithAPIKey sets an explicit API key for a backend, overriding the environment.
func (r *Resolver) WithAPIKey(pt ProviderType, key string) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiKeys[pt] = key
	return r
}

// ProviderFor returns the provider serving the given model identifier.
func (r *Resolver) ProviderFor(modelID string) (Provider, error) {
	pt, err := ProviderTypeForModel(modelID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[pt]; ok {
		return p, nil
	}

	key := r.apiKeys[pt]
	if key == "" {
		key = os.Getenv(pt.EnvVar())
	}
	if key == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", pt, pt.EnvVar())
	}

	var p Provider
	switch pt {
	case ProviderOpenAI:
		p = NewOpenAIProvider(key)
	case ProviderAnthropic:
		p = NewAnthropicProvider(key)
	case ProviderDeepSeek:
		p = NewDeepSeekProvider(key)
	case ProviderGemini:
		p = NewGeminiProvider(key)
	default:
		return nil, fmt.Errorf("unknown provider type: %v", pt)
	}

	r.providers[pt] = p
	return p, nil
}
