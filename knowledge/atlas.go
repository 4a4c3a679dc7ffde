package knowledge

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultAtlasBaseURL = "https://en.wikipedia.org/api/rest_v1/page/summary"

// AtlasAdapter resolves anatomical location terms to encyclopedia
// summaries, used when observations carry location qualifiers.
type AtlasAdapter struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewAtlasAdapter creates the adapter. An empty baseURL uses the public
// Wikipedia REST endpoint.
func NewAtlasAdapter(baseURL string, timeout time.Duration, log zerolog.Logger) *AtlasAdapter {
	if baseURL == "" {
		baseURL = defaultAtlasBaseURL
	}
	return &AtlasAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		log:     log.With().Str("adapter", "anatomy_atlas").Logger(),
	}
}

// Name identifies the source.
func (a *AtlasAdapter) Name() string { return "anatomy_atlas" }

// Lookup resolves an anatomical term to a short description.
func (a *AtlasAdapter) Lookup(ctx context.Context, term string) string {
	return a.lookup(ctx, term).Display("anatomy_atlas", term)
}

func (a *AtlasAdapter) lookup(ctx context.Context, term string) Result {
	slug := url.PathEscape(strings.ReplaceAll(strings.TrimSpace(term), " ", "_"))

	var payload struct {
		Title   string `json:"title"`
		Extract string `json:"extract"`
	}
	if err := getJSON(ctx, a.client, a.baseURL+"/"+slug, &payload); err != nil {
		// The summary endpoint answers 404 for unknown pages.
		if strings.Contains(err.Error(), "status 404") {
			return notFound()
		}
		a.log.Warn().Str("term", term).Err(err).Msg("lookup failed")
		return upstreamFailure(err)
	}
	if payload.Extract == "" {
		return notFound()
	}

	return success(payload.Title + ": " + payload.Extract)
}

var _ Adapter = (*AtlasAdapter)(nil)
