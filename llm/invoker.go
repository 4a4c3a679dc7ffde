// Model invocation with candidate fallback and outer-attempt retry.
//
// A CallSpec names candidate models in priority order. Any generation
// error or schema-invalid output is a soft failure that advances to the
// next candidate; only after a full pass fails does the invoker back off
// and start the list over. Exhaustion yields a degraded result carrying
// an unavailability message, never an error, so the caller-facing
// contract stays schema-valid.

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/model"
)

// ProviderResolver maps a model identifier to the provider serving it.
type ProviderResolver interface {
	ProviderFor(modelID string) (Provider, error)
}

// GenerateFunc runs one full generation attempt against a single
// candidate model and returns its structured result.
type GenerateFunc func(ctx context.Context, modelID string) (model.ReasoningResult, error)

// InvokerConfig tunes retry and timeout behavior. Zero values take defaults.
type InvokerConfig struct {
	MaxAttempts int           // outer passes over the candidate list (default 2)
	Backoff     time.Duration // fixed delay between outer passes (default 2s)
	CallTimeout time.Duration // bound on each blocking model call (default 30s)
}

func (c InvokerConfig) withDefaults() InvokerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	return c
}

// Invoker executes model calls with fallback and retry.
type Invoker struct {
	resolver ProviderResolver
	cfg      InvokerConfig
	log      zerolog.Logger
}

// NewInvoker creates an invoker over the given resolver.
func NewInvoker(resolver ProviderResolver, cfg InvokerConfig, log zerolog.Logger) *Invoker {
	return &Invoker{
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "invoker").Logger(),
	}
}

// unavailableMessage is what a degraded result says instead of a diagnosis.
const unavailableMessage = "The diagnostic assistant is temporarily unavailable. No model could produce a valid result; please retry shortly."

// DegradedResult builds a schema-shaped result carrying an unavailability
// message. Returned when every candidate and attempt is exhausted.
func DegradedResult(reason string) model.ReasoningResult {
	return model.ReasoningResult{
		PrimarySuggestion: unavailableMessage,
		Degraded:          true,
		Trace: model.Trace{
			Observations:  []string{"No observations were produced."},
			Justification: "All model candidates failed: " + reason,
		},
	}
}

// Invoke iterates spec.Candidates in priority order, calling gen once per
// candidate. Errors and schema violations are soft failures. After each
// full failed pass the invoker sleeps for the configured backoff and
// retries, up to the attempt ceiling. Cancellation aborts promptly but
// still returns a degraded result so the response schema holds.
func (inv *Invoker) Invoke(ctx context.Context, spec model.CallSpec, gen GenerateFunc) model.ReasoningResult {
	var lastFailure string

	for attempt := 1; attempt <= inv.cfg.MaxAttempts; attempt++ {
		for _, candidate := range spec.Candidates {
			if ctx.Err() != nil {
				return DegradedResult(fmt.Sprintf("request cancelled: %v", ctx.Err()))
			}

			result, err := gen(ctx, candidate)
			if err != nil {
				lastFailure = err.Error()
				inv.log.Warn().Str("model", candidate).Int("attempt", attempt).
					Err(err).Msg("model soft failure")
				continue
			}

			if err := spec.Schema.Validate(result); err != nil {
				lastFailure = err.Error()
				inv.log.Warn().Str("model", candidate).Int("attempt", attempt).
					Err(err).Msg("schema-invalid output treated as soft failure")
				continue
			}

			return result
		}

		if attempt < inv.cfg.MaxAttempts {
			select {
			case <-time.After(inv.cfg.Backoff):
			case <-ctx.Done():
				return DegradedResult(fmt.Sprintf("request cancelled: %v", ctx.Err()))
			}
		}
	}

	inv.log.Error().Int("attempts", inv.cfg.MaxAttempts).
		Str("last_failure", lastFailure).Msg("all model candidates exhausted")
	if lastFailure == "" {
		lastFailure = "no candidates available"
	}
	return DegradedResult(lastFailure)
}

// Chat performs one bounded chat call against a single model.
func (inv *Invoker) Chat(ctx context.Context, modelID string, params model.GenerationParams, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	provider, err := inv.resolver.ProviderFor(modelID)
	if err != nil {
		return LLMResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, inv.cfg.CallTimeout)
	defer cancel()

	return provider.Chat(ctx, messages, CallOptions{Model: modelID, Params: params, Format: format})
}

// ChatWithTools performs one bounded tool-enabled chat call against a single model.
func (inv *Invoker) ChatWithTools(ctx context.Context, modelID string, params model.GenerationParams, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error) {
	provider, err := inv.resolver.ProviderFor(modelID)
	if err != nil {
		return LLMResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, inv.cfg.CallTimeout)
	defer cancel()

	return provider.ChatWithTools(ctx, messages, tools, CallOptions{Model: modelID, Params: params})
}

// InvokeStream streams one generation over the candidate list. A single
// pass, no outer retry: once text has reached the caller it cannot be
// un-sent. Candidates that fail before emitting anything fall through to
// the next; a failure after emission returns the accumulated partial
// text alongside the error. Returns the full text on success.
func (inv *Invoker) InvokeStream(ctx context.Context, spec model.CallSpec, messages []ChatMessage, chunks chan<- string) (string, error) {
	var full strings.Builder
	emitted := false

	for _, candidate := range spec.Candidates {
		if ctx.Err() != nil {
			return full.String(), ctx.Err()
		}

		provider, err := inv.resolver.ProviderFor(candidate)
		if err != nil {
			inv.log.Warn().Str("model", candidate).Err(err).Msg("stream candidate unresolvable")
			continue
		}

		inner := make(chan string)
		forwardDone := make(chan error, 1)
		go func() {
			for chunk := range inner {
				full.WriteString(chunk)
				emitted = true
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					forwardDone <- ctx.Err()
					// Drain so the provider goroutine can finish.
					for range inner {
					}
					return
				}
			}
			forwardDone <- nil
		}()

		_, streamErr := provider.StreamChat(ctx, messages, CallOptions{Model: candidate, Params: spec.Params}, inner)
		close(inner)
		if fwdErr := <-forwardDone; fwdErr != nil {
			return full.String(), fwdErr
		}

		if streamErr == nil {
			return full.String(), nil
		}

		inv.log.Warn().Str("model", candidate).Err(streamErr).Msg("stream soft failure")
		if emitted {
			// Partial output already flushed; no fallback possible.
			return full.String(), fmt.Errorf("stream interrupted after partial output: %w", streamErr)
		}
	}

	return full.String(), fmt.Errorf("all stream candidates failed")
}
