package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/model"
)

// CaseFinder finds prior cases matching a finding term.
// Implemented by the storage layer.
type CaseFinder interface {
	FindCases(ctx context.Context, term string, limit int) ([]model.CaseRecord, error)
}

// maxCaseMatches caps how many precedent cases surface per lookup.
const maxCaseMatches = 3

// CaseHistoryAdapter looks up prior institutional cases as diagnostic
// precedent for an observed finding.
type CaseHistoryAdapter struct {
	cases CaseFinder
	log   zerolog.Logger
}

// NewCaseHistoryAdapter creates the adapter over a case store.
func NewCaseHistoryAdapter(cases CaseFinder, log zerolog.Logger) *CaseHistoryAdapter {
	return &CaseHistoryAdapter{
		cases: cases,
		log:   log.With().Str("adapter", "case_history").Logger(),
	}
}

// Name identifies the source.
func (a *CaseHistoryAdapter) Name() string { return "case_history" }

// Lookup finds prior cases whose findings match the term.
func (a *CaseHistoryAdapter) Lookup(ctx context.Context, term string) string {
	return a.lookup(ctx, term).Display("case_history", term)
}

func (a *CaseHistoryAdapter) lookup(ctx context.Context, term string) Result {
	if a.cases == nil {
		return misconfigured(fmt.Errorf("no case store attached"))
	}

	records, err := a.cases.FindCases(ctx, term, maxCaseMatches)
	if err != nil {
		a.log.Warn().Str("term", term).Err(err).Msg("lookup failed")
		return upstreamFailure(err)
	}
	if len(records) == 0 {
		return notFound()
	}

	var lines []string
	for _, rec := range records {
		lines = append(lines, fmt.Sprintf("%s: %s -> %s",
			rec.CreatedAt.Format("2006-01-02"), rec.Finding, rec.Diagnosis))
	}

	return success(fmt.Sprintf("Prior cases matching %q: %s.", term, strings.Join(lines, "; ")))
}

var _ Adapter = (*CaseHistoryAdapter)(nil)
