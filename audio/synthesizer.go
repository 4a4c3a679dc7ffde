// Package audio synthesizes speech from diagnostic prose.
//
// Information Hiding:
// - TTS provider and request shaping hidden behind Synthesizer
// - Response streaming and buffering internalized
package audio

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Clip is one synthesized audio artifact.
type Clip struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

// Synthesizer converts text into an audio clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}

// OpenAISynthesizer synthesizes speech via the OpenAI TTS endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
}

// NewOpenAISynthesizer creates a synthesizer with the default model and voice.
func NewOpenAISynthesizer(apiKey string) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		client: openai.NewClient(apiKey),
		model:  openai.TTSModel1,
		voice:  openai.VoiceAlloy,
	}
}

// WithVoice overrides the speech voice.
func (s *OpenAISynthesizer) WithVoice(voice openai.SpeechVoice) *OpenAISynthesizer {
	s.voice = voice
	return s
}

// Synthesize converts text into an mp3 clip.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (Clip, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return Clip{}, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	return Clip{Format: "mp3", Data: data}, nil
}
