package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

func TestClinicalLookupMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[2, ["123", "456"], null, [["Pneumothorax"], ["Tension pneumothorax"]]]`))
	}))
	defer server.Close()

	adapter := NewClinicalTermAdapter(server.URL, 0, zerolog.Nop())

	summary := adapter.Lookup(context.Background(), "pneumothorax")
	if !strings.Contains(summary, "Pneumothorax") {
		t.Errorf("expected condition names in summary, got %q", summary)
	}
	if !strings.Contains(summary, "pneumothorax") {
		t.Errorf("summary should contain the looked-up term, got %q", summary)
	}
}

func TestClinicalLookupUnreachableUpstreamNeverEmpty(t *testing.T) {
	// Point at a closed server so the request fails outright.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	adapter := NewClinicalTermAdapter(server.URL, 0, zerolog.Nop())

	summary := adapter.Lookup(context.Background(), "pneumothorax")
	if summary == "" {
		t.Fatal("unreachable upstream must still yield a descriptive string")
	}
	if !strings.Contains(summary, "pneumothorax") {
		t.Errorf("failure string should mention the term, got %q", summary)
	}
}

func TestOpenIRanksByScoreTopThree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list": [
			{"title": "low relevance", "score": 0.2},
			{"title": "first tie", "score": 0.9},
			{"title": "second tie", "score": 0.9},
			{"title": "best match", "score": 1.5},
			{"title": "also low", "score": 0.1}
		]}`))
	}))
	defer server.Close()

	adapter := NewOpenIAdapter(server.URL, 0, zerolog.Nop())

	summary := adapter.Lookup(context.Background(), "pulmonary nodule")
	if !strings.Contains(summary, "1. best match") {
		t.Errorf("highest score should rank first, got %q", summary)
	}
	// Ties preserve document order.
	if !strings.Contains(summary, "2. first tie") || !strings.Contains(summary, "3. second tie") {
		t.Errorf("tied entries should keep document order, got %q", summary)
	}
	if strings.Contains(summary, "low relevance") || strings.Contains(summary, "also low") {
		t.Errorf("only the top 3 should surface, got %q", summary)
	}
}

func TestOpenIFewerThanThreeMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list": [{"title": "only match", "score": 0.5}]}`))
	}))
	defer server.Close()

	adapter := NewOpenIAdapter(server.URL, 0, zerolog.Nop())

	summary := adapter.Lookup(context.Background(), "rare finding")
	if !strings.Contains(summary, "only match") {
		t.Errorf("expected the single match, got %q", summary)
	}
}

func TestAtlasLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	adapter := NewAtlasAdapter(server.URL, 0, zerolog.Nop())

	summary := adapter.Lookup(context.Background(), "nonexistent structure")
	if summary == "" {
		t.Fatal("not-found must still return a descriptive string")
	}
	if !strings.Contains(summary, "no results") {
		t.Errorf("expected not-found text, got %q", summary)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", 399) + "ézzz" // 2-byte rune straddles the 400-byte cut
	got := truncate(s, 400)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8: %q", got[390:])
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-6:])
	}
	if short := truncate("abc", 400); short != "abc" {
		t.Errorf("short strings must pass through unchanged, got %q", short)
	}
}

func TestPharmaLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{
			"openfda": {"generic_name": ["amiodarone"]},
			"indications_and_usage": ["Treatment of life-threatening ventricular arrhythmias."]
		}]}`))
	}))
	defer server.Close()

	adapter := NewPharmaAdapter(server.URL, 0, zerolog.Nop())

	summary := adapter.Lookup(context.Background(), "amiodarone")
	if !strings.Contains(summary, "amiodarone") || !strings.Contains(summary, "Indications") {
		t.Errorf("unexpected summary: %q", summary)
	}
}
