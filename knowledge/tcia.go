package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/cache"
)

const defaultTCIABaseURL = "https://services.cancerimagingarchive.net/services/v4/TCIA/query"

// maxCollectionMatches caps how many catalog matches surface per lookup.
const maxCollectionMatches = 5

// TCIAAdapter looks up public imaging collections in the Cancer Imaging
// Archive registry. The registry has no per-term query endpoint, so the
// full collection catalog is fetched once and matched locally.
type TCIAAdapter struct {
	baseURL     string
	client      *http.Client
	collections *cache.CollectionCache
	log         zerolog.Logger
}

// NewTCIAAdapter creates the adapter. An empty baseURL uses the public
// TCIA endpoint.
func NewTCIAAdapter(baseURL string, timeout time.Duration, collections *cache.CollectionCache, log zerolog.Logger) *TCIAAdapter {
	if baseURL == "" {
		baseURL = defaultTCIABaseURL
	}
	return &TCIAAdapter{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      newHTTPClient(timeout),
		collections: collections,
		log:         log.With().Str("adapter", "imaging_collections").Logger(),
	}
}

// Name identifies the source.
func (a *TCIAAdapter) Name() string { return "imaging_collections" }

// Lookup finds imaging collections whose names match the term.
func (a *TCIAAdapter) Lookup(ctx context.Context, term string) string {
	return a.lookup(ctx, term).Display("imaging_collections", term)
}

func (a *TCIAAdapter) lookup(ctx context.Context, term string) Result {
	catalog, err := a.collections.Get(ctx, a.Name(), a.fetchCatalog)
	if err != nil {
		a.log.Warn().Str("term", term).Err(err).Msg("catalog fetch failed")
		return upstreamFailure(err)
	}

	needle := normalizeTerm(term)
	if needle == "" {
		return notFound()
	}

	var matches []string
	for _, name := range catalog {
		if strings.Contains(normalizeTerm(name), needle) {
			matches = append(matches, name)
			if len(matches) == maxCollectionMatches {
				break
			}
		}
	}
	if len(matches) == 0 {
		return notFound()
	}

	return success(fmt.Sprintf("Imaging collections matching %q: %s.", term, strings.Join(matches, ", ")))
}

// fetchCatalog pulls the full collection list from the registry.
func (a *TCIAAdapter) fetchCatalog(ctx context.Context) ([]string, error) {
	var payload []struct {
		Collection string `json:"Collection"`
	}
	if err := getJSON(ctx, a.client, a.baseURL+"/getCollectionValues?format=json", &payload); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(payload))
	for _, entry := range payload {
		if entry.Collection != "" {
			names = append(names, entry.Collection)
		}
	}
	return names, nil
}

var _ Adapter = (*TCIAAdapter)(nil)
