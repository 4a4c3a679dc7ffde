// Modality-specific analysis strategies.
//
// Information Hiding:
// - Strategy selection rules hidden behind strategyFor
// - Framing text internalized per strategy

package reasoning

import (
	"strings"

	"github.com/richinex/radiant/model"
)

// Strategy is a named analysis approach keyed by the study's modality.
// The name must be stated in the observation output so a reviewer can
// tell which framing was applied.
type Strategy struct {
	Name    string
	Framing string
}

var (
	strategyCT = Strategy{
		Name: "CT density and windowing analysis",
		Framing: "Assess tissue attenuation in Hounsfield terms. Consider the " +
			"appropriate window settings (lung, mediastinal, bone) for each region " +
			"and describe density changes relative to expected values.",
	}
	strategyMR = Strategy{
		Name: "MR signal and sequence analysis",
		Framing: "Characterize signal intensity per sequence (T1, T2, FLAIR, DWI " +
			"where identifiable) and describe hyperintense or hypointense regions " +
			"relative to reference tissue.",
	}
	strategyRadiograph = Strategy{
		Name: "radiographic opacity and alignment analysis",
		Framing: "Assess opacities and lucencies systematically, evaluate bony " +
			"alignment and joint spaces, and compare symmetric structures side to side.",
	}
	strategyVideo = Strategy{
		Name: "temporal and flow dynamics analysis",
		Framing: "Track motion across frames: wall movement, flow patterns, and " +
			"timing abnormalities. Describe dynamics over the sequence, not single frames.",
	}
)

// strategyFor selects the analysis strategy for a request. Video studies
// always get the temporal framing; image studies are keyed by mime and
// handle hints, defaulting to plain radiograph framing when nothing more
// specific is declared.
func strategyFor(req model.ReasoningRequest) Strategy {
	if req.Modality == model.ModalityVideo {
		return strategyVideo
	}

	hints := mediaHints(req)
	switch {
	case strings.Contains(hints, "magnetic") || containsToken(hints, "mr") || containsToken(hints, "mri"):
		return strategyMR
	case strings.Contains(hints, "tomograph") || containsToken(hints, "ct"):
		return strategyCT
	case req.StructuredImaging:
		// Structured imaging files with no modality hint are most often CT series.
		return strategyCT
	default:
		return strategyRadiograph
	}
}

func mediaHints(req model.ReasoningRequest) string {
	var b strings.Builder
	for _, m := range req.Media {
		b.WriteString(strings.ToLower(m.MimeType))
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(m.Handle))
		b.WriteByte(' ')
	}
	return b.String()
}

// containsToken reports whether s contains word as a standalone token,
// so a handle like "chest-ct-042.dcm" matches "ct" but "fracture" does not.
func containsToken(s, word string) bool {
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if tok == word {
			return true
		}
	}
	return false
}
