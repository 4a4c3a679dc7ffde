package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultClinicalBaseURL = "https://clinicaltables.nlm.nih.gov/api/conditions/v3"

// ClinicalTermAdapter looks up clinical condition terms against the NIH
// Clinical Tables search service.
type ClinicalTermAdapter struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClinicalTermAdapter creates the adapter. An empty baseURL uses the
// public NIH endpoint.
func NewClinicalTermAdapter(baseURL string, timeout time.Duration, log zerolog.Logger) *ClinicalTermAdapter {
	if baseURL == "" {
		baseURL = defaultClinicalBaseURL
	}
	return &ClinicalTermAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		log:     log.With().Str("adapter", "clinical_terms").Logger(),
	}
}

// Name identifies the source.
func (a *ClinicalTermAdapter) Name() string { return "clinical_terms" }

// Lookup resolves a clinical term to matching condition names.
func (a *ClinicalTermAdapter) Lookup(ctx context.Context, term string) string {
	return a.lookup(ctx, term).Display("clinical_terms", term)
}

func (a *ClinicalTermAdapter) lookup(ctx context.Context, term string) Result {
	endpoint := fmt.Sprintf("%s/search?terms=%s&df=consumer_name,primary_name", a.baseURL, url.QueryEscape(term))

	// Clinical Tables responds with a positional array:
	// [total, [codes], null, [[display fields]...]]
	var raw []json.RawMessage
	if err := getJSON(ctx, a.client, endpoint, &raw); err != nil {
		a.log.Warn().Str("term", term).Err(err).Msg("lookup failed")
		return upstreamFailure(err)
	}
	if len(raw) < 4 {
		return upstreamFailure(fmt.Errorf("malformed response with %d elements", len(raw)))
	}

	var rows [][]string
	if err := json.Unmarshal(raw[3], &rows); err != nil {
		return upstreamFailure(fmt.Errorf("malformed display rows: %w", err))
	}
	if len(rows) == 0 {
		return notFound()
	}

	var names []string
	for _, row := range rows {
		if len(row) > 0 && row[0] != "" {
			names = append(names, row[0])
		}
		if len(names) == 5 {
			break
		}
	}
	if len(names) == 0 {
		return notFound()
	}

	return success(fmt.Sprintf("Clinical term %q matches the following conditions: %s.",
		term, strings.Join(names, "; ")))
}

var _ Adapter = (*ClinicalTermAdapter)(nil)
