// Package model provides domain types shared across packages.
package model

import (
	"errors"
	"fmt"
	"time"
)

// Modality is the imaging technique category of a study.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
)

// MediaRef points at one study artifact by opaque handle.
type MediaRef struct {
	Handle   string `json:"handle"`
	MimeType string `json:"mime_type"`
}

// ReasoningRequest describes one diagnostic request. Immutable once built:
// the pipeline only reads it.
type ReasoningRequest struct {
	Media             []MediaRef `json:"media"`
	Modality          Modality   `json:"modality"`
	RegionOfInterest  string     `json:"region_of_interest,omitempty"`
	StructuredImaging bool       `json:"structured_imaging,omitempty"`
	PatientID         string     `json:"patient_id,omitempty"`
}

// ErrInvalidRequest marks caller-fault validation failures, distinct from
// anything that goes wrong after model/tool work has started.
var ErrInvalidRequest = errors.New("invalid reasoning request")

// Validate rejects malformed requests before any model or tool work begins.
func (r ReasoningRequest) Validate() error {
	if len(r.Media) == 0 {
		return fmt.Errorf("%w: no media references", ErrInvalidRequest)
	}
	for i, m := range r.Media {
		if m.Handle == "" {
			return fmt.Errorf("%w: media[%d] has empty handle", ErrInvalidRequest, i)
		}
	}
	switch r.Modality {
	case ModalityImage, ModalityVideo:
	default:
		return fmt.Errorf("%w: unknown modality %q", ErrInvalidRequest, r.Modality)
	}
	return nil
}

// GenerationParams are the sampling parameters for one model call.
type GenerationParams struct {
	MaxTokens         uint32  `json:"max_tokens"`
	Temperature       float32 `json:"temperature"`
	TopP              float32 `json:"top_p,omitempty"`
	TopK              int32   `json:"top_k,omitempty"`
	RepetitionPenalty float32 `json:"repetition_penalty,omitempty"`
}

// CallSpec describes one model invocation: candidate model identifiers in
// priority order, sampling parameters, and the output schema the result
// must satisfy before it counts as a success.
type CallSpec struct {
	Candidates []string
	Params     GenerationParams
	Schema     ResultSchema
}

// NewCallSpec builds a CallSpec, enforcing the at-least-one-candidate invariant.
func NewCallSpec(candidates []string, params GenerationParams, schema ResultSchema) (CallSpec, error) {
	if len(candidates) == 0 {
		return CallSpec{}, errors.New("call spec requires at least one candidate model")
	}
	return CallSpec{Candidates: candidates, Params: params, Schema: schema}, nil
}

// ToolInvocation is one dispatched tool call, recorded in the trace in
// dispatch order. Never mutated after creation.
type ToolInvocation struct {
	Tool     string        `json:"tool"`
	Term     string        `json:"term"`
	Summary  string        `json:"summary"`
	Order    int           `json:"order"`
	Duration time.Duration `json:"duration"`
}

// Measurement is a named structure with its measured value, as stated by
// the model ("right hilar mass", "3.2 x 2.8 cm").
type Measurement struct {
	Structure string `json:"structure"`
	Value     string `json:"value"`
}

// Trace is the ordered record of one reasoning pass.
type Trace struct {
	Strategy      string   `json:"strategy,omitempty"`
	Observations  []string `json:"observations"`
	Justification string   `json:"justification"`
}

// ReasoningResult is the structured output of one reasoning pass.
// Degraded is set when the invoker exhausted every candidate and attempt
// and the suggestion is an unavailability message rather than a diagnosis.
type ReasoningResult struct {
	PrimarySuggestion string           `json:"primary_suggestion"`
	SecondaryFindings []string         `json:"secondary_findings,omitempty"`
	Measurements      []Measurement    `json:"measurements,omitempty"`
	Trace             Trace            `json:"trace"`
	Lookups           []ToolInvocation `json:"lookups,omitempty"`
	Degraded          bool             `json:"degraded,omitempty"`
}
