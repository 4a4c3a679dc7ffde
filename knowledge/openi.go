package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultOpenIBaseURL = "https://openi.nlm.nih.gov/api"

// maxImageResults caps how many ranked candidates surface per lookup.
const maxImageResults = 3

// OpenIAdapter searches the NLM Open-i public medical image database for
// visual reference examples of a finding.
type OpenIAdapter struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewOpenIAdapter creates the adapter. An empty baseURL uses the public
// Open-i endpoint.
func NewOpenIAdapter(baseURL string, timeout time.Duration, log zerolog.Logger) *OpenIAdapter {
	if baseURL == "" {
		baseURL = defaultOpenIBaseURL
	}
	return &OpenIAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		log:     log.With().Str("adapter", "image_database").Logger(),
	}
}

// Name identifies the source.
func (a *OpenIAdapter) Name() string { return "image_database" }

type openIEntry struct {
	Title    string  `json:"title"`
	Modality string  `json:"image_modality"`
	Score    float64 `json:"score"`
}

// Lookup finds reference images matching a finding term.
func (a *OpenIAdapter) Lookup(ctx context.Context, term string) string {
	return a.lookup(ctx, term).Display("image_database", term)
}

func (a *OpenIAdapter) lookup(ctx context.Context, term string) Result {
	endpoint := fmt.Sprintf("%s/search?query=%s&m=1&n=10", a.baseURL, url.QueryEscape(term))

	var payload struct {
		List []openIEntry `json:"list"`
	}
	if err := getJSON(ctx, a.client, endpoint, &payload); err != nil {
		a.log.Warn().Str("term", term).Err(err).Msg("lookup failed")
		return upstreamFailure(err)
	}
	if len(payload.List) == 0 {
		return notFound()
	}

	// Rank by relevance, non-increasing; ties keep document order.
	ranked := make([]openIEntry, len(payload.List))
	copy(ranked, payload.List)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > maxImageResults {
		ranked = ranked[:maxImageResults]
	}

	var lines []string
	for i, entry := range ranked {
		desc := entry.Title
		if entry.Modality != "" {
			desc += " (" + entry.Modality + ")"
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, desc))
	}

	return success(fmt.Sprintf("Reference images for %q: %s", term, strings.Join(lines, " ")))
}

var _ Adapter = (*OpenIAdapter)(nil)
