// Package scraper defines the fetcher contract shared by all listing
// sources and the browsing-session machinery the browser-backed sources
// build on.
package scraper

import (
	"context"

	"business-searcher/models"
)

// FetchOptions are the caller-supplied parameters for one fetch run.
type FetchOptions struct {
	// Location is a source-specific location slug, e.g. "sunshine-coast-qld".
	Location string
	RadiusKm int

	// Count caps how many listings the run yields.
	Count int

	// FetchDetails controls whether detail pages are visited for the full
	// description and posted date.
	FetchDetails bool

	// KnownIDs holds identifiers already persisted by the caller. Listings
	// whose id is in the set are skipped without a detail fetch.
	KnownIDs map[string]struct{}
}

// Summary reports what a fetch run did. Skipped counts sold listings and
// already-known ids; every skip is counted, never silently dropped.
type Summary struct {
	Fetched int
	Skipped int
}

// EmitFunc receives each listing as soon as it is resolved. Returning
// false stops the run early; the fetcher still releases its session.
type EmitFunc func(*models.Listing) bool

// Fetcher is the capability set every listing source implements.
type Fetcher interface {
	// Source returns the source name listings are tagged with.
	Source() string

	// Fetch streams normalized listings to emit, paginating until Count
	// listings have been yielded or the source runs out of results.
	// Item-level failures are skipped and counted; the only fatal error
	// is the source being unreachable on the very first page.
	Fetch(ctx context.Context, opts FetchOptions, emit EmitFunc) (Summary, error)

	// FetchByID retrieves full details for a single listing.
	FetchByID(ctx context.Context, id string) (*models.Listing, error)

	// HealthCheck reports whether the source is currently reachable.
	HealthCheck(ctx context.Context) bool
}

// Sources is an explicit collection of fetchers keyed by source name,
// constructed at startup and passed to whoever needs it.
type Sources map[string]Fetcher

// Names returns the registered source names.
func (s Sources) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}
