// Ordered output streaming with a final audio artifact.
//
// Conversational requests stream text chunks as the model produces them;
// media-bearing requests run the full diagnostic protocol synchronously
// and arrive as one combined chunk. Either way the last thing on the
// stream before close is synthesized audio of the full text.
//
// Information Hiding:
// - Chunk forwarding and ordering hidden behind channel semantics
// - Audio synthesis failures internalized (logged, stream still closes)

package stream

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/audio"
	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
	"github.com/richinex/radiant/reasoning"
)

// Chunk is one unit of caller-facing output. Text chunks carry model
// output in generation order; the final chunk of a successful stream
// carries audio. Err marks a stream that failed after partial output.
type Chunk struct {
	Text  string      `json:"text,omitempty"`
	Audio *audio.Clip `json:"audio,omitempty"`
	Err   string      `json:"error,omitempty"`
}

const chatSystemPrompt = "You are a radiology assistant. Answer clinical questions " +
	"clearly and concisely, and say so when a question needs an imaging study to answer."

// Aggregator composes model output, pipeline results and audio into one
// ordered stream per request.
type Aggregator struct {
	invoker  *llm.Invoker
	pipeline *reasoning.Pipeline
	synth    audio.Synthesizer
	log      zerolog.Logger
}

// New creates an aggregator.
func New(invoker *llm.Invoker, pipeline *reasoning.Pipeline, synth audio.Synthesizer, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		invoker:  invoker,
		pipeline: pipeline,
		synth:    synth,
		log:      log.With().Str("component", "stream").Logger(),
	}
}

// Chat streams a conversational answer. Text chunks are forwarded in
// generation order as produced, never buffered or split. After the text
// completes, one final audio chunk is emitted and the stream closes. A
// failure after partial output emits an error marker instead of audio.
// The out channel is always closed before Chat returns.
func (a *Aggregator) Chat(ctx context.Context, spec model.CallSpec, prompt string, out chan<- Chunk) {
	defer close(out)

	messages := []llm.ChatMessage{
		llm.SystemMessage(chatSystemPrompt),
		llm.UserMessage(prompt),
	}

	inner := make(chan string, 16)
	type streamOutcome struct {
		full string
		err  error
	}
	done := make(chan streamOutcome, 1)
	go func() {
		full, err := a.invoker.InvokeStream(ctx, spec, messages, inner)
		close(inner)
		done <- streamOutcome{full: full, err: err}
	}()

	for text := range inner {
		if !a.send(ctx, out, Chunk{Text: text}) {
			// Consumer gone; drain so the stream goroutine can finish.
			for range inner {
			}
			<-done
			return
		}
	}

	outcome := <-done
	if outcome.err != nil {
		a.log.Warn().Err(outcome.err).Msg("chat stream failed")
		a.send(ctx, out, Chunk{Err: outcome.err.Error()})
		return
	}

	a.send(ctx, out, Chunk{Audio: a.synthesize(ctx, outcome.full)})
}

// Diagnose runs the full diagnostic protocol synchronously, then emits
// the formatted result and its audio as a single chunk. Tool research is
// multi-step and order-sensitive, so nothing is streamed early. The out
// channel is always closed before Diagnose returns. The only error is a
// request-validation failure.
func (a *Aggregator) Diagnose(ctx context.Context, req model.ReasoningRequest, spec model.CallSpec, out chan<- Chunk) (model.ReasoningResult, error) {
	defer close(out)

	result, err := a.pipeline.Diagnose(ctx, req, spec)
	if err != nil {
		return model.ReasoningResult{}, err
	}

	prose := reasoning.FormatReport(result)
	a.send(ctx, out, Chunk{Text: prose, Audio: a.synthesize(ctx, prose)})
	return result, nil
}

// synthesize returns audio for the text, or nil when synthesis is
// unavailable. Audio failures never fail the request.
func (a *Aggregator) synthesize(ctx context.Context, text string) *audio.Clip {
	if a.synth == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	clip, err := a.synth.Synthesize(ctx, text)
	if err != nil {
		a.log.Warn().Err(err).Msg("audio synthesis failed")
		return nil
	}
	return &clip
}

// send delivers a chunk unless the request is cancelled.
func (a *Aggregator) send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
