package model

import (
	"fmt"
	"strings"
)

// ResultSchema declares which ReasoningResult fields are required.
// A result missing a required field is failed output, not a successful
// empty result.
type ResultSchema struct {
	Required []string
}

// Schema field names.
const (
	FieldPrimarySuggestion = "primary_suggestion"
	FieldSecondaryFindings = "secondary_findings"
	FieldMeasurements      = "measurements"
	FieldObservations      = "observations"
	FieldJustification     = "justification"
)

// DefaultSchema is the schema every diagnostic pass must satisfy.
func DefaultSchema() ResultSchema {
	return ResultSchema{Required: []string{FieldPrimarySuggestion, FieldObservations, FieldJustification}}
}

// ChatSchema only demands a non-empty answer.
func ChatSchema() ResultSchema {
	return ResultSchema{Required: []string{FieldPrimarySuggestion}}
}

// Validate checks the result against the declared required fields.
func (s ResultSchema) Validate(r ReasoningResult) error {
	var missing []string
	for _, field := range s.Required {
		if !present(field, r) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("result missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func present(field string, r ReasoningResult) bool {
	switch field {
	case FieldPrimarySuggestion:
		return strings.TrimSpace(r.PrimarySuggestion) != ""
	case FieldSecondaryFindings:
		return len(r.SecondaryFindings) > 0
	case FieldMeasurements:
		return len(r.Measurements) > 0
	case FieldObservations:
		return len(r.Trace.Observations) > 0
	case FieldJustification:
		return strings.TrimSpace(r.Trace.Justification) != ""
	default:
		// Unknown field names can never be satisfied; surface that loudly.
		return false
	}
}
