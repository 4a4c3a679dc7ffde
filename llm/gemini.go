// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Streaming via official SDK iterator

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client  *genai.Client
	initErr error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{
			initErr: fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{client: client}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) ready() error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

func buildGeminiConfig(opts CallOptions, systemInstruction string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(opts.Params.Temperature),
		MaxOutputTokens: int32(opts.Params.MaxTokens),
	}
	if opts.Params.TopP > 0 {
		config.TopP = genai.Ptr(opts.Params.TopP)
	}
	if opts.Params.TopK > 0 {
		config.TopK = genai.Ptr(float32(opts.Params.TopK))
	}
	if opts.Params.RepetitionPenalty > 0 {
		config.FrequencyPenalty = genai.Ptr(opts.Params.RepetitionPenalty)
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	return config
}

// Chat sends a chat completion request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage, opts CallOptions) (LLMResponse, error) {
	if err := p.ready(); err != nil {
		return LLMResponse{}, err
	}

	contents, systemInstruction := convertToGeminiMessages(messages)
	config := buildGeminiConfig(opts, systemInstruction)

	response, err := p.client.Models.GenerateContent(ctx, opts.Model, contents, config)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := response.Text()
	if content == "" {
		return LLMResponse{}, fmt.Errorf("empty response from Gemini")
	}

	return LLMResponse{Content: content, Usage: geminiUsage(response)}, nil
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *GeminiProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts CallOptions) (LLMResponse, error) {
	if err := p.ready(); err != nil {
		return LLMResponse{}, err
	}

	contents, systemInstruction := convertToGeminiMessages(messages)
	config := buildGeminiConfig(opts, systemInstruction)
	config.Tools = convertToGeminiTools(tools)

	response, err := p.client.Models.GenerateContent(ctx, opts.Model, contents, config)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	var toolCalls []ToolCall
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, ToolCall{
					ID:        part.FunctionCall.Name, // Gemini uses name as ID
					Name:      part.FunctionCall.Name,
					Arguments: argsJSON,
				})
			}
		}
	}

	return LLMResponse{Content: content, ToolCalls: toolCalls, Usage: geminiUsage(response)}, nil
}

// StreamChat streams a chat completion.
func (p *GeminiProvider) StreamChat(ctx context.Context, messages []ChatMessage, opts CallOptions, chunks chan<- string) (*TokenUsage, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	contents, systemInstruction := convertToGeminiMessages(messages)
	config := buildGeminiConfig(opts, systemInstruction)

	var usage *TokenUsage
	for response, err := range p.client.Models.GenerateContentStream(ctx, opts.Model, contents, config) {
		if err != nil {
			return usage, fmt.Errorf("stream error: %w", err)
		}

		if u := geminiUsage(response); u != nil {
			usage = u
		}

		text := response.Text()
		if text != "" {
			select {
			case chunks <- text:
			case <-ctx.Done():
				return usage, ctx.Err()
			}
		}
	}

	return usage, nil
}

func geminiUsage(response *genai.GenerateContentResponse) *TokenUsage {
	if response.UsageMetadata == nil {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
		CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
	}
}

// convertToGeminiMessages converts our ChatMessage to Gemini format,
// carrying tool calls and tool responses. Extracts the system message
// and returns it separately.
func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				content := &genai.Content{Role: genai.RoleModel}
				if msg.Content != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
				}
				for _, tc := range msg.ToolCalls {
					var args map[string]any
					_ = json.Unmarshal(tc.Arguments, &args)
					content.Parts = append(content.Parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: tc.Name,
							Args: args,
						},
					})
				}
				contents = append(contents, content)
			} else {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
			}
		case "tool":
			var result map[string]any
			_ = json.Unmarshal([]byte(msg.Content), &result)
			if result == nil {
				result = map[string]any{"result": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser, // Gemini expects tool results as user
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolCallID,
						Response: result,
					},
				}},
			})
		}
	}

	return contents, systemInstruction
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertToGeminiSchema(t.Parameters),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema converts a parameter schema to Gemini format.
func convertToGeminiSchema(params map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	if t, ok := params["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	if req, ok := params["required"].([]interface{}); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if req, ok := params["required"].([]string); ok {
		schema.Required = req
	}

	if props, ok := params["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			propMap, ok := prop.(map[string]interface{})
			if !ok {
				continue
			}
			schema.Properties[name] = convertPropertyToGeminiSchema(propMap)
		}
	}

	return schema
}

// convertPropertyToGeminiSchema converts a single property to Gemini schema.
func convertPropertyToGeminiSchema(prop map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := prop["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}
	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	// Gemini requires 'items' for arrays
	if schema.Type == genai.TypeArray {
		if items, ok := prop["items"].(map[string]interface{}); ok {
			schema.Items = convertPropertyToGeminiSchema(items)
		} else {
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	if schema.Type == genai.TypeObject {
		if props, ok := prop["properties"].(map[string]interface{}); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for name, p := range props {
				if pMap, ok := p.(map[string]interface{}); ok {
					schema.Properties[name] = convertPropertyToGeminiSchema(pMap)
				}
			}
		}
	}

	return schema
}

// mapToGeminiType maps JSON schema type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer", "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
