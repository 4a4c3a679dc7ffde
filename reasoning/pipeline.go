// Stepwise diagnostic protocol.
//
// One pass runs ModalityBranch, InitialObservation, ToolResearch and
// Synthesis in order, linearly, with no backtracking. The pass executes
// against a single candidate model under the invoker's fallback policy:
// any step error or schema-invalid synthesis is a soft failure that the
// invoker answers by advancing to the next candidate.
//
// Information Hiding:
// - Protocol step sequencing hidden behind Diagnose
// - Prompt construction hidden in prompts.go
// - Tool-calling loop internals hidden

package reasoning

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/internal/jsonx"
	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
	"github.com/richinex/radiant/tools"
)

// mandatoryLookupTool is the tool every identified finding must be
// researched with. Enforcement is advisory: a pass that skips it is
// logged, not rejected.
const mandatoryLookupTool = "clinical_terms"

// Config tunes pipeline behavior. Zero values take defaults.
type Config struct {
	MaxResearchSteps int // bound on the tool-calling loop (default 6)
}

func (c Config) withDefaults() Config {
	if c.MaxResearchSteps <= 0 {
		c.MaxResearchSteps = 6
	}
	return c
}

// Pipeline drives the diagnostic protocol.
type Pipeline struct {
	invoker  *llm.Invoker
	registry *tools.Registry
	cfg      Config
	log      zerolog.Logger
}

// New creates a pipeline over the given invoker and tool registry.
func New(invoker *llm.Invoker, registry *tools.Registry, cfg Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		invoker:  invoker,
		registry: registry,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Diagnose validates the request and runs the full protocol under the
// invoker's candidate-fallback policy. The only error returned is a
// request-validation failure; everything downstream degrades into the
// result itself.
func (p *Pipeline) Diagnose(ctx context.Context, req model.ReasoningRequest, spec model.CallSpec) (model.ReasoningResult, error) {
	if err := req.Validate(); err != nil {
		return model.ReasoningResult{}, err
	}

	result := p.invoker.Invoke(ctx, spec, func(ctx context.Context, modelID string) (model.ReasoningResult, error) {
		return p.runPass(ctx, modelID, req, spec.Params)
	})
	return result, nil
}

// runPass executes one full protocol pass against a single model.
func (p *Pipeline) runPass(ctx context.Context, modelID string, req model.ReasoningRequest, params model.GenerationParams) (model.ReasoningResult, error) {
	strategy := strategyFor(req)
	log := p.log.With().Str("model", modelID).Str("strategy", strategy.Name).Logger()

	observations, err := p.observe(ctx, modelID, params, req, strategy)
	if err != nil {
		return model.ReasoningResult{}, fmt.Errorf("observation step: %w", err)
	}
	if !strings.Contains(strings.ToLower(observations), strings.ToLower(strategy.Name)) {
		log.Warn().Msg("observation output does not state the analysis strategy")
	}

	dispatcher := tools.NewDispatcher(p.registry)
	if err := p.research(ctx, modelID, params, observations, dispatcher); err != nil {
		return model.ReasoningResult{}, fmt.Errorf("research step: %w", err)
	}

	lookups := dispatcher.Trace()
	if !usedTool(lookups, mandatoryLookupTool) {
		log.Warn().Str("tool", mandatoryLookupTool).
			Msg("no clinical term lookups recorded for this pass")
	}

	return p.synthesize(ctx, modelID, params, strategy, observations, lookups)
}

// observe runs the InitialObservation step.
func (p *Pipeline) observe(ctx context.Context, modelID string, params model.GenerationParams, req model.ReasoningRequest, strategy Strategy) (string, error) {
	resp, err := p.invoker.Chat(ctx, modelID, params, []llm.ChatMessage{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(observationPrompt(req, strategy)),
	}, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("model returned empty observations")
	}
	return resp.Content, nil
}

// toolDefinitions translates registry metadata into the declarations
// providers send over their native tool-calling APIs. Sorted by name so
// every candidate sees the same tool order.
func toolDefinitions(registry *tools.Registry) []llm.ToolDefinition {
	metas := registry.List()
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })

	defs := make([]llm.ToolDefinition, 0, len(metas))
	for _, meta := range metas {
		props := make(map[string]interface{}, len(meta.Parameters))
		required := []string{}
		for _, param := range meta.Parameters {
			props[param.Name] = map[string]interface{}{
				"type":        param.ParamType,
				"description": param.Description,
			}
			if param.Required {
				required = append(required, param.Name)
			}
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		})
	}
	return defs
}

// research runs the bounded tool loop over the provider's native
// tool-calling interface. The model picks which tools to call; the
// dispatcher records every call in order. A reply without tool calls
// ends the loop.
func (p *Pipeline) research(ctx context.Context, modelID string, params model.GenerationParams, observations string, dispatcher *tools.Dispatcher) error {
	defs := toolDefinitions(p.registry)
	conversation := []llm.ChatMessage{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(researchPrompt(observations, p.cfg.MaxResearchSteps)),
	}

	for step := 0; step < p.cfg.MaxResearchSteps; step++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := p.invoker.ChatWithTools(ctx, modelID, params, conversation, defs)
		if err != nil {
			return err
		}
		if len(resp.ToolCalls) == 0 {
			return nil
		}

		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			output := dispatcher.Dispatch(ctx, call.Name, call.Arguments)
			conversation = append(conversation, llm.ToolResultMessage(call.ID, output))
		}
	}
	return nil
}

// synthesisPayload is the model's JSON answer in the synthesis step.
type synthesisPayload struct {
	PrimarySuggestion string              `json:"primary_suggestion"`
	SecondaryFindings []string            `json:"secondary_findings"`
	Measurements      []model.Measurement `json:"measurements"`
	Justification     string              `json:"justification"`
}

// synthesize runs the final step, combining observations and every tool
// result into the structured result the invoker will schema-check.
func (p *Pipeline) synthesize(ctx context.Context, modelID string, params model.GenerationParams, strategy Strategy, observations string, lookups []model.ToolInvocation) (model.ReasoningResult, error) {
	resp, err := p.invoker.Chat(ctx, modelID, params, []llm.ChatMessage{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(synthesisPrompt(observations, lookups)),
	}, llm.NewJSONObjectFormat())
	if err != nil {
		return model.ReasoningResult{}, fmt.Errorf("synthesis step: %w", err)
	}

	payload, err := jsonx.Extract[synthesisPayload](resp.Content)
	if err != nil {
		return model.ReasoningResult{}, fmt.Errorf("synthesis output: %w", err)
	}

	return model.ReasoningResult{
		PrimarySuggestion: payload.PrimarySuggestion,
		SecondaryFindings: payload.SecondaryFindings,
		Measurements:      payload.Measurements,
		Trace: model.Trace{
			Strategy:      strategy.Name,
			Observations:  []string{observations},
			Justification: payload.Justification,
		},
		Lookups: lookups,
	}, nil
}

func usedTool(lookups []model.ToolInvocation, name string) bool {
	for _, inv := range lookups {
		if inv.Tool == name {
			return true
		}
	}
	return false
}
