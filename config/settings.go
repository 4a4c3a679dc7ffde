// Package config provides application settings loaded from environment
// variables.
//
// Settings are created via Load() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Translation into per-component configuration
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/richinex/radiant/knowledge"
	"github.com/richinex/radiant/llm"
	"github.com/richinex/radiant/model"
	"github.com/richinex/radiant/reasoning"
)

// Settings holds all application configuration. Every field reads from
// a RADIANT_*-prefixed environment variable.
type Settings struct {
	// Model candidates in priority order, highest first.
	ModelCandidates []string `envconfig:"MODEL_CANDIDATES" default:"gpt-4o,claude-sonnet-4-20250514,deepseek-chat"`

	// Generation parameters.
	MaxTokens         uint32  `envconfig:"MAX_TOKENS" default:"4096"`
	Temperature       float32 `envconfig:"TEMPERATURE" default:"0.3"`
	TopP              float32 `envconfig:"TOP_P" default:"0"`
	TopK              int32   `envconfig:"TOP_K" default:"0"`
	RepetitionPenalty float32 `envconfig:"REPETITION_PENALTY" default:"0"`

	// Invoker retry policy.
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"2"`
	Backoff     time.Duration `envconfig:"BACKOFF" default:"2s"`
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`

	// Pipeline.
	MaxResearchSteps int `envconfig:"MAX_RESEARCH_STEPS" default:"6"`

	// Knowledge adapters. Empty base URLs use the public endpoints.
	UpstreamTimeout    time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	CollectionCacheTTL time.Duration `envconfig:"COLLECTION_CACHE_TTL" default:"0"` // 0 = process lifetime
	ClinicalBaseURL    string        `envconfig:"CLINICAL_BASE_URL"`
	AtlasBaseURL       string        `envconfig:"ATLAS_BASE_URL"`
	OpenIBaseURL       string        `envconfig:"OPENI_BASE_URL"`
	TCIABaseURL        string        `envconfig:"TCIA_BASE_URL"`
	PharmaBaseURL      string        `envconfig:"PHARMA_BASE_URL"`
	XNATBaseURL        string        `envconfig:"XNAT_BASE_URL"`
	XNATUsername       string        `envconfig:"XNAT_USERNAME"`
	XNATPassword       string        `envconfig:"XNAT_PASSWORD"`
	XNATSessionTTL     time.Duration `envconfig:"XNAT_SESSION_TTL" default:"15m"`

	// Storage and output.
	DatabasePath string `envconfig:"DATABASE_PATH" default:"radiant.db"`
	TTSVoice     string `envconfig:"TTS_VOICE" default:"alloy"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads settings from the environment.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("radiant", &s); err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if len(s.ModelCandidates) == 0 {
		return Settings{}, fmt.Errorf("RADIANT_MODEL_CANDIDATES must name at least one model")
	}
	return s, nil
}

// GenerationParams returns the sampling parameters for model calls.
func (s Settings) GenerationParams() model.GenerationParams {
	return model.GenerationParams{
		MaxTokens:         s.MaxTokens,
		Temperature:       s.Temperature,
		TopP:              s.TopP,
		TopK:              s.TopK,
		RepetitionPenalty: s.RepetitionPenalty,
	}
}

// CallSpec builds the model call spec for the given output schema.
func (s Settings) CallSpec(schema model.ResultSchema) (model.CallSpec, error) {
	return model.NewCallSpec(s.ModelCandidates, s.GenerationParams(), schema)
}

// InvokerConfig returns the invoker retry policy.
func (s Settings) InvokerConfig() llm.InvokerConfig {
	return llm.InvokerConfig{
		MaxAttempts: s.MaxAttempts,
		Backoff:     s.Backoff,
		CallTimeout: s.CallTimeout,
	}
}

// PipelineConfig returns the reasoning pipeline configuration.
func (s Settings) PipelineConfig() reasoning.Config {
	return reasoning.Config{MaxResearchSteps: s.MaxResearchSteps}
}

// XNATConfig returns the project-registry adapter configuration.
func (s Settings) XNATConfig() knowledge.XNATConfig {
	return knowledge.XNATConfig{
		BaseURL:    s.XNATBaseURL,
		Username:   s.XNATUsername,
		Password:   s.XNATPassword,
		Timeout:    s.UpstreamTimeout,
		SessionTTL: s.XNATSessionTTL,
	}
}
