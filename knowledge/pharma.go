package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const defaultPharmaBaseURL = "https://api.fda.gov/drug/label.json"

// PharmaAdapter looks up drug label information in the openFDA registry,
// used when an observed finding implicates a medication.
type PharmaAdapter struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewPharmaAdapter creates the adapter. An empty baseURL uses the public
// openFDA endpoint.
func NewPharmaAdapter(baseURL string, timeout time.Duration, log zerolog.Logger) *PharmaAdapter {
	if baseURL == "" {
		baseURL = defaultPharmaBaseURL
	}
	return &PharmaAdapter{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		log:     log.With().Str("adapter", "pharmaceutical").Logger(),
	}
}

// Name identifies the source.
func (a *PharmaAdapter) Name() string { return "pharmaceutical" }

// Lookup resolves a drug name to its labeled indications.
func (a *PharmaAdapter) Lookup(ctx context.Context, term string) string {
	return a.lookup(ctx, term).Display("pharmaceutical", term)
}

func (a *PharmaAdapter) lookup(ctx context.Context, term string) Result {
	query := url.QueryEscape(fmt.Sprintf(`openfda.generic_name:%q openfda.brand_name:%q`, term, term))
	endpoint := fmt.Sprintf("%s?search=%s&limit=1", a.baseURL, query)

	var payload struct {
		Results []struct {
			OpenFDA struct {
				GenericName []string `json:"generic_name"`
			} `json:"openfda"`
			IndicationsAndUsage []string `json:"indications_and_usage"`
			WarningsAndCautions []string `json:"warnings_and_cautions"`
		} `json:"results"`
	}
	if err := getJSON(ctx, a.client, endpoint, &payload); err != nil {
		// openFDA answers 404 when the search matches nothing.
		if strings.Contains(err.Error(), "status 404") {
			return notFound()
		}
		a.log.Warn().Str("term", term).Err(err).Msg("lookup failed")
		return upstreamFailure(err)
	}
	if len(payload.Results) == 0 {
		return notFound()
	}

	entry := payload.Results[0]
	name := term
	if len(entry.OpenFDA.GenericName) > 0 {
		name = entry.OpenFDA.GenericName[0]
	}

	var parts []string
	if len(entry.IndicationsAndUsage) > 0 {
		parts = append(parts, "Indications: "+truncate(entry.IndicationsAndUsage[0], 400))
	}
	if len(entry.WarningsAndCautions) > 0 {
		parts = append(parts, "Warnings: "+truncate(entry.WarningsAndCautions[0], 400))
	}
	if len(parts) == 0 {
		return notFound()
	}

	return success(fmt.Sprintf("%s - %s", name, strings.Join(parts, " ")))
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

var _ Adapter = (*PharmaAdapter)(nil)
