package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/richinex/radiant/cache"
)

// defaultSessionTTL mirrors the upstream's idle session lifetime.
const defaultSessionTTL = 15 * time.Minute

// XNATConfig holds the institutional project registry connection settings.
type XNATConfig struct {
	BaseURL    string
	Username   string
	Password   string
	Timeout    time.Duration
	SessionTTL time.Duration
}

// XNATAdapter looks up projects in an institutional XNAT registry. The
// registry requires an authenticated session; sessions are cached and
// shared across requests, and a rejected session triggers exactly one
// forced re-authentication before the call is given up as failed.
type XNATAdapter struct {
	cfg      XNATConfig
	client   *http.Client
	sessions *cache.SessionCache
	log      zerolog.Logger
}

// NewXNATAdapter creates the adapter.
func NewXNATAdapter(cfg XNATConfig, sessions *cache.SessionCache, log zerolog.Logger) *XNATAdapter {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return &XNATAdapter{
		cfg:      cfg,
		client:   newHTTPClient(cfg.Timeout),
		sessions: sessions,
		log:      log.With().Str("adapter", "project_registry").Logger(),
	}
}

// Name identifies the source.
func (a *XNATAdapter) Name() string { return "project_registry" }

// Lookup finds registry projects whose name or ID matches the term.
func (a *XNATAdapter) Lookup(ctx context.Context, term string) string {
	return a.lookup(ctx, term).Display("project_registry", term)
}

func (a *XNATAdapter) lookup(ctx context.Context, term string) Result {
	if a.cfg.BaseURL == "" || a.cfg.Username == "" || a.cfg.Password == "" {
		return misconfigured(errors.New("missing base URL or credentials"))
	}

	session, err := a.sessions.Get(ctx, a.Name(), a.authenticate)
	if err != nil {
		a.log.Warn().Str("term", term).Err(err).Msg("authentication failed")
		return upstreamFailure(err)
	}

	result, unauthorized, err := a.queryProjects(ctx, session.Token, term)
	if err != nil {
		a.log.Warn().Str("term", term).Err(err).Msg("lookup failed")
		return upstreamFailure(err)
	}
	if !unauthorized {
		return result
	}

	// The upstream rejected a session the cache considered valid.
	// Discard it and retry the whole operation exactly once.
	a.log.Info().Str("term", term).Msg("session rejected, re-authenticating")
	a.sessions.Invalidate(a.Name())
	session, err = a.sessions.Get(ctx, a.Name(), a.authenticate)
	if err != nil {
		return upstreamFailure(err)
	}

	result, unauthorized, err = a.queryProjects(ctx, session.Token, term)
	if err != nil {
		return upstreamFailure(err)
	}
	if unauthorized {
		return upstreamFailure(errors.New("session rejected after re-authentication"))
	}
	return result
}

// authenticate opens a new registry session.
func (a *XNATAdapter) authenticate(ctx context.Context) (cache.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/data/JSESSION", nil)
	if err != nil {
		return cache.Session{}, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.SetBasicAuth(a.cfg.Username, a.cfg.Password)

	resp, err := a.client.Do(req)
	if err != nil {
		return cache.Session{}, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cache.Session{}, fmt.Errorf("auth rejected with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return cache.Session{}, fmt.Errorf("failed to read session token: %w", err)
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return cache.Session{}, errors.New("auth returned empty session token")
	}

	return cache.Session{Token: token, Expiry: time.Now().Add(a.cfg.SessionTTL)}, nil
}

// queryProjects lists registry projects and matches them against term.
// The unauthorized return distinguishes a rejected session from other failures.
func (a *XNATAdapter) queryProjects(ctx context.Context, token, term string) (result Result, unauthorized bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/data/projects?format=json", nil)
	if err != nil {
		return Result{}, false, fmt.Errorf("failed to build request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: token})

	resp, err := a.client.Do(req)
	if err != nil {
		return Result{}, false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Result{}, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		ResultSet struct {
			Result []struct {
				ID          string `json:"ID"`
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"Result"`
		} `json:"ResultSet"`
	}
	if err := decodeJSON(resp.Body, &payload); err != nil {
		return Result{}, false, err
	}

	needle := normalizeTerm(term)
	var matches []string
	for _, p := range payload.ResultSet.Result {
		if strings.Contains(normalizeTerm(p.Name), needle) || strings.Contains(normalizeTerm(p.ID), needle) {
			desc := p.Name
			if p.Description != "" {
				desc += " - " + p.Description
			}
			matches = append(matches, desc)
		}
	}
	if len(matches) == 0 {
		return notFound(), false, nil
	}

	return success(fmt.Sprintf("Institutional projects matching %q: %s.", term, strings.Join(matches, "; "))), false, nil
}

var _ Adapter = (*XNATAdapter)(nil)
