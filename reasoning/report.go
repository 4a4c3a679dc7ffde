package reasoning

import (
	"fmt"
	"strings"

	"github.com/richinex/radiant/model"
)

// FormatReport renders a structured result as readable prose, suitable
// for display or speech synthesis.
func FormatReport(result model.ReasoningResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Primary suggestion: %s.\n", strings.TrimSuffix(result.PrimarySuggestion, "."))

	if len(result.SecondaryFindings) > 0 {
		fmt.Fprintf(&b, "Secondary findings: %s.\n", strings.Join(result.SecondaryFindings, "; "))
	}
	if len(result.Measurements) > 0 {
		var parts []string
		for _, m := range result.Measurements {
			parts = append(parts, fmt.Sprintf("%s measures %s", m.Structure, m.Value))
		}
		fmt.Fprintf(&b, "Measurements: %s.\n", strings.Join(parts, "; "))
	}
	if result.Trace.Justification != "" {
		fmt.Fprintf(&b, "Justification: %s\n", result.Trace.Justification)
	}
	if len(result.Lookups) > 0 {
		var sources []string
		seen := make(map[string]bool)
		for _, inv := range result.Lookups {
			if !seen[inv.Tool] {
				seen[inv.Tool] = true
				sources = append(sources, inv.Tool)
			}
		}
		fmt.Fprintf(&b, "Sources consulted: %s.\n", strings.Join(sources, ", "))
	}

	return b.String()
}
