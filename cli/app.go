// Application wiring for CLI commands.
//
// Information Hiding:
// - Component construction and dependency order hidden
// - Adapter set and tool registration hidden
// - Logger configuration hidden

package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/richinex/radiant/audio"
	"github.com/richinex/radiant/cache"
	"github.com/richinex/radiant/config"
	"github.com/richinex/radiant/diagnosis"
	"github.com/richinex/radiant/knowledge"
	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/reasoning"
	"github.com/richinex/radiant/storage"
	"github.com/richinex/radiant/stream"
	"github.com/richinex/radiant/tools"
)

// toolDescriptions are the model-facing descriptions of each knowledge source.
var toolDescriptions = map[string]string{
	"clinical_terms":      "Look up a clinical finding term and get matching formal condition names. Mandatory for every identified finding.",
	"anatomy_atlas":       "Look up an anatomical structure and get a reference description of it.",
	"image_database":      "Search a medical image database for visual reference examples of a finding.",
	"imaging_collections": "Search public imaging research collections. Use when an oncologic finding is suspected.",
	"project_registry":    "Search the institutional imaging project registry for related studies.",
	"pharmaceutical":      "Look up a drug name and get its label information. Use when a medication is implicated.",
	"case_history":        "Find prior cases with similar findings and their confirmed diagnoses.",
}

// App holds the wired application components.
type App struct {
	Settings   config.Settings
	Log        zerolog.Logger
	Invoker    *llm.Invoker
	Registry   *tools.Registry
	Pipeline   *reasoning.Pipeline
	Aggregator *stream.Aggregator
	Store      *storage.SqliteStorage
	Diagnoses  *diagnosis.Service
}

// NewApp loads settings and wires every component. Call Close when done.
func NewApp() (*App, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := newLogger(settings.LogLevel)

	store, err := storage.OpenSqlite(settings.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	resolver := llm.NewResolver()
	invoker := llm.NewInvoker(resolver, settings.InvokerConfig(), log)

	sessions := cache.NewSessionCache(log)
	collections := cache.NewCollectionCache(settings.CollectionCacheTTL, log)

	adapters := []knowledge.Adapter{
		knowledge.NewClinicalTermAdapter(settings.ClinicalBaseURL, settings.UpstreamTimeout, log),
		knowledge.NewAtlasAdapter(settings.AtlasBaseURL, settings.UpstreamTimeout, log),
		knowledge.NewOpenIAdapter(settings.OpenIBaseURL, settings.UpstreamTimeout, log),
		knowledge.NewTCIAAdapter(settings.TCIABaseURL, settings.UpstreamTimeout, collections, log),
		knowledge.NewXNATAdapter(settings.XNATConfig(), sessions, log),
		knowledge.NewPharmaAdapter(settings.PharmaBaseURL, settings.UpstreamTimeout, log),
		knowledge.NewCaseHistoryAdapter(store, log),
	}

	registry, err := tools.WithAdapters(toolDescriptions, adapters...)
	if err != nil {
		store.Close()
		return nil, err
	}

	pipeline := reasoning.New(invoker, registry, settings.PipelineConfig(), log)

	var synth audio.Synthesizer
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		synth = audio.NewOpenAISynthesizer(key).
			WithVoice(openai.SpeechVoice(settings.TTSVoice))
	} else {
		log.Debug().Msg("OPENAI_API_KEY not set, audio synthesis disabled")
	}

	return &App{
		Settings:   settings,
		Log:        log,
		Invoker:    invoker,
		Registry:   registry,
		Pipeline:   pipeline,
		Aggregator: stream.New(invoker, pipeline, synth, log),
		Store:      store,
		Diagnoses:  diagnosis.NewService(store, log),
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.Store.Close()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}
