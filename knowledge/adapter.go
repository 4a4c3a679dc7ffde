// Package knowledge provides lookup adapters for external knowledge
// sources used during diagnostic reasoning.
//
// Every adapter exposes the same contract: Lookup takes a term and
// returns a descriptive, non-empty string. Failures never propagate as
// errors past the adapter boundary; a missing credential, an unreachable
// upstream, or an empty result set all become readable text that joins
// the reasoning trace. The Result type makes that contract structural.
package knowledge

import (
	"context"
	"fmt"
)

// Adapter is one external knowledge source.
type Adapter interface {
	// Name identifies the source in traces and logs.
	Name() string

	// Lookup resolves a term to a summary string. Never empty, never panics;
	// failure conditions yield descriptive text.
	Lookup(ctx context.Context, term string) string
}

// FailureKind classifies why a lookup produced no useful summary.
type FailureKind int

const (
	// FailureNone means the lookup succeeded.
	FailureNone FailureKind = iota
	// FailureNotFound means the source had no entry for the term.
	FailureNotFound
	// FailureMisconfigured means the adapter lacks credentials or endpoints.
	FailureMisconfigured
	// FailureUpstream covers network and upstream errors, including a
	// second authentication rejection.
	FailureUpstream
)

// Result is the outcome of one lookup attempt. Callers always unwrap it
// to a display string via Display; the failure kind exists so tests and
// logs can tell the conditions apart.
type Result struct {
	Summary string
	Kind    FailureKind
	Err     error
}

func success(summary string) Result {
	return Result{Summary: summary}
}

func notFound() Result {
	return Result{Kind: FailureNotFound}
}

func misconfigured(err error) Result {
	return Result{Kind: FailureMisconfigured, Err: err}
}

func upstreamFailure(err error) Result {
	return Result{Kind: FailureUpstream, Err: err}
}

// Display renders the result as the string that joins the trace.
// Guaranteed non-empty for every failure kind.
func (r Result) Display(source, term string) string {
	switch r.Kind {
	case FailureNone:
		return r.Summary
	case FailureNotFound:
		return fmt.Sprintf("%s: no results found for %q.", source, term)
	case FailureMisconfigured:
		return fmt.Sprintf("%s lookup is not configured (%v); continuing without it.", source, r.Err)
	default:
		return fmt.Sprintf("%s lookup failed for %q: %v.", source, term, r.Err)
	}
}
