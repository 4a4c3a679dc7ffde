// DeepSeek Provider implementation using go-openai library.
//
// DeepSeek exposes an OpenAI-compatible API at a different base URL, so
// the provider is an OpenAIProvider pointed elsewhere.

package llm

import (
	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates a provider for DeepSeek models.
func NewDeepSeekProvider(apiKey string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = deepseekBaseURL

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		name:   "deepseek",
	}
}
