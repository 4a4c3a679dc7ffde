// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Streaming via official SDK

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) buildParams(messages []ChatMessage, opts CallOptions) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(opts.Model),
		MaxTokens:   int64(opts.Params.MaxTokens),
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(float64(opts.Params.Temperature)),
	}
	if opts.Params.TopP > 0 {
		params.TopP = anthropic.Float(float64(opts.Params.TopP))
	}
	if opts.Params.TopK > 0 {
		params.TopK = anthropic.Int(int64(opts.Params.TopK))
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	return params
}

// Chat sends a chat completion request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []ChatMessage, opts CallOptions) (LLMResponse, error) {
	message, err := p.client.Messages.New(ctx, p.buildParams(messages, opts))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		}
	}

	return LLMResponse{Content: content, Usage: anthropicUsage(message)}, nil
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts CallOptions) (LLMResponse, error) {
	params := p.buildParams(messages, opts)
	params.Tools = convertToAnthropicTools(tools)

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	var toolCalls []ToolCall
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(variant.Input)
			toolCalls = append(toolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: inputJSON,
			})
		}
	}

	return LLMResponse{Content: content, ToolCalls: toolCalls, Usage: anthropicUsage(message)}, nil
}

// StreamChat streams a chat completion.
func (p *AnthropicProvider) StreamChat(ctx context.Context, messages []ChatMessage, opts CallOptions, chunks chan<- string) (*TokenUsage, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(messages, opts))

	var usage *TokenUsage
	for stream.Next() {
		event := stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			if eventVariant.Message.Usage.InputTokens > 0 {
				usage = &TokenUsage{
					PromptTokens: uint32(eventVariant.Message.Usage.InputTokens),
				}
			}
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					select {
					case chunks <- deltaVariant.Text:
					case <-ctx.Done():
						return usage, ctx.Err()
					}
				}
			}
		case anthropic.MessageDeltaEvent:
			if eventVariant.Usage.OutputTokens > 0 {
				if usage == nil {
					usage = &TokenUsage{}
				}
				usage.CompletionTokens = uint32(eventVariant.Usage.OutputTokens)
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
		}
	}

	if stream.Err() != nil {
		return usage, fmt.Errorf("stream error: %w", stream.Err())
	}

	return usage, nil
}

func anthropicUsage(message *anthropic.Message) *TokenUsage {
	if message.Usage.InputTokens == 0 && message.Usage.OutputTokens == 0 {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     uint32(message.Usage.InputTokens),
		CompletionTokens: uint32(message.Usage.OutputTokens),
		TotalTokens:      uint32(message.Usage.InputTokens + message.Usage.OutputTokens),
	}
}

// convertToAnthropicMessages converts our ChatMessage to Anthropic format,
// carrying tool calls and tool results. Extracts the system message and
// returns it separately.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				content := &anthropic.MessageParam{
					Role: anthropic.MessageParamRoleAssistant,
				}
				if msg.Content != "" {
					content.Content = append(content.Content, anthropic.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					var input map[string]interface{}
					_ = json.Unmarshal(tc.Arguments, &input)
					content.Content = append(content.Content, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							ID:    tc.ID,
							Name:  tc.Name,
							Input: input,
						},
					})
				}
				anthropicMessages = append(anthropicMessages, *content)
			} else {
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}
		case "tool":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		properties, _ := t.Parameters["properties"].(map[string]interface{})
		required, _ := t.Parameters["required"].([]string)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
