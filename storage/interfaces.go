package storage

import (
	"time"

	"business-searcher/models"
)

// Stats summarizes the stored dataset.
type Stats struct {
	Total    int
	ByStatus map[models.Status]int
}

// ListingStore is the persistence contract for the dedup and status layer.
// Re-ingesting the same (id, source) must never create a duplicate row.
type ListingStore interface {
	// Exists reports whether a listing with the given id and source is stored.
	Exists(id, source string) (bool, error)

	// Upsert creates the listing if absent, otherwise overwrites its mutable
	// fields and recomputes derived metrics, in a single atomic operation.
	// The bool is true when a new row was created.
	Upsert(l *models.Listing) (*models.StoredListing, bool, error)

	// Get returns the stored listing or nil if absent.
	Get(id string) (*models.StoredListing, error)

	// SetStatus advances the processing status. Backward transitions are
	// rejected; processedAt, when non-nil, stamps processed_at.
	SetStatus(id string, status models.Status, processedAt *time.Time) error

	// ListByStatus returns listings in the given status, newest first.
	// limit <= 0 means no limit.
	ListByStatus(status models.Status, limit int) ([]*models.StoredListing, error)

	// ListAll returns listings regardless of status, newest first.
	ListAll(limit int) ([]*models.StoredListing, error)

	// ResetAllToNew bulk-resets every listing to NEW before a fresh
	// filtering pass. Returns the number of rows touched.
	ResetAllToNew() (int64, error)

	// Stats returns total and per-status counts.
	Stats() (*Stats, error)

	// KnownIDs returns the ids already stored for a source, for skipping
	// redundant detail fetches. Empty source means all sources.
	KnownIDs(source string) (map[string]struct{}, error)

	Close() error
}
