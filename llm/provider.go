// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions. The model identifier
// and sampling parameters travel per call in CallOptions, so one
// provider instance serves every model its backend hosts.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Chat sends a chat completion request.
	Chat(ctx context.Context, messages []ChatMessage, opts CallOptions) (LLMResponse, error)

	// ChatWithTools sends a chat completion request with tool definitions.
	// The LLM may respond with tool calls in LLMResponse.ToolCalls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts CallOptions) (LLMResponse, error)

	// StreamChat streams a chat completion, sending text deltas to chunks.
	// Returns token usage when the backend reports it.
	StreamChat(ctx context.Context, messages []ChatMessage, opts CallOptions, chunks chan<- string) (*TokenUsage, error)
}
