// Prompt construction for the diagnostic protocol steps.

package reasoning

import (
	"fmt"
	"strings"

	"github.com/richinex/radiant/model"
)

const systemPrompt = `You are a radiology diagnostic assistant. You analyze imaging studies ` +
	`methodically, consult reference sources before committing to a diagnosis, and you never ` +
	`invent findings that are not supported by the study description.`

// observationPrompt builds the InitialObservation instruction. When a
// region of interest was supplied it is described first and explicitly
// prioritized; the rest of the study follows, normal before abnormal.
func observationPrompt(req model.ReasoningRequest, strategy Strategy) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analysis approach: %s.\n%s\n\n", strategy.Name, strategy.Framing)
	b.WriteString("Begin your observation by stating the analysis approach named above.\n\n")

	b.WriteString("Study contents:\n")
	for i, m := range req.Media {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, m.Handle, m.MimeType)
	}
	b.WriteByte('\n')

	if req.RegionOfInterest != "" {
		fmt.Fprintf(&b,
			"A region of interest was marked: %s\nDescribe this region FIRST and give it priority over everything else.\n\n",
			req.RegionOfInterest)
	}

	b.WriteString("Then describe the remainder of the study exhaustively. " +
		"State normal findings before abnormal ones. Do not diagnose yet; observe only.")

	return b.String()
}

// researchPrompt builds the ToolResearch instruction. Clinical-term
// lookups are declared mandatory for every identified finding; the other
// lookups are situational. The tool set itself reaches the model through
// the provider's tool-calling API, not through this prompt.
func researchPrompt(observations string, maxSteps int) string {
	return fmt.Sprintf(`You have recorded these observations:

%s

Research your findings using the available tools before synthesizing a diagnosis.

Rules:
- For EVERY finding term you identified, you MUST look it up with the clinical_terms tool.
- Use case_history for precedent cases matching a finding.
- Use anatomy_atlas when a finding is qualified by an anatomical location.
- Use image_database to find visual reference examples.
- Use imaging_collections when an oncologic finding is suspected.
- Use pharmaceutical when a medication is implicated.

You have at most %d research steps. When research is complete, reply without calling any tool.`,
		observations, maxSteps)
}

// synthesisPrompt builds the final instruction combining observations and
// every tool result into a structured result.
func synthesisPrompt(observations string, lookups []model.ToolInvocation) string {
	var b strings.Builder

	b.WriteString("Observations:\n")
	b.WriteString(observations)
	b.WriteString("\n\nResearch results:\n")
	if len(lookups) == 0 {
		b.WriteString("(no tool lookups were performed)\n")
	}
	for _, inv := range lookups {
		fmt.Fprintf(&b, "[%d] %s(%q): %s\n", inv.Order+1, inv.Tool, inv.Term, inv.Summary)
	}

	b.WriteString(`
Synthesize a final diagnostic result. Requirements:
- primary_suggestion must be ONE specific, formally-named diagnosis. Never a vague descriptive phrase.
- justification must explicitly cross-reference the research results that support the diagnosis.

Respond in this JSON format:
{
  "primary_suggestion": "formal diagnosis name",
  "secondary_findings": ["..."],
  "measurements": [{"structure": "...", "value": "..."}],
  "justification": "reasoning citing the research results"
}`)

	return b.String()
}
