package models

import (
	"strings"
	"time"
)

// Status is the processing state of a listing.
type Status string

const (
	StatusNew           Status = "new"
	StatusPrefilterPass Status = "prefilter_pass"
	StatusPrefilterFail Status = "prefilter_fail"
	StatusResearching   Status = "researching"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// AllStatuses lists every valid status, in pipeline order.
var AllStatuses = []Status{
	StatusNew,
	StatusPrefilterPass,
	StatusPrefilterFail,
	StatusResearching,
	StatusCompleted,
	StatusFailed,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// statusSuccessors encodes the forward-only state machine:
// new -> {prefilter_pass, prefilter_fail} -> researching -> {completed, failed}.
// The bulk reset back to new is a store-level operation, not a transition.
var statusSuccessors = map[Status][]Status{
	StatusNew:           {StatusPrefilterPass, StatusPrefilterFail},
	StatusPrefilterPass: {StatusResearching, StatusPrefilterFail},
	StatusPrefilterFail: {},
	StatusResearching:   {StatusCompleted, StatusFailed},
	StatusCompleted:     {},
	StatusFailed:        {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition. Setting the same status again is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, n := range statusSuccessors[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Listing is the canonical, source-agnostic record for one
// business-for-sale ad, as produced by a fetcher.
//
// Price, Revenue and Ebitda are whole-unit amounts; zero means the
// source did not disclose the figure.
type Listing struct {
	ID          string
	Source      string
	Title       string
	Description string
	Price       int
	Revenue     int
	Ebitda      int
	Location    string
	Industry    string
	URL         string
	PostedDate  *time.Time
	RawData     map[string]any
}

// IsSold reports whether the listing title marks it as already sold.
// This is a terminal classification signal, not a parse failure.
func (l *Listing) IsSold() bool {
	return strings.Contains(strings.ToLower(l.Title), "sold")
}

// EbitdaMargin returns ebitda/revenue and whether it is defined.
func (l *Listing) EbitdaMargin() (float64, bool) {
	if l.Ebitda > 0 && l.Revenue > 0 {
		return float64(l.Ebitda) / float64(l.Revenue), true
	}
	return 0, false
}

// AskingMultiple returns price/ebitda and whether it is defined.
func (l *Listing) AskingMultiple() (float64, bool) {
	if l.Price > 0 && l.Ebitda > 0 {
		return float64(l.Price) / float64(l.Ebitda), true
	}
	return 0, false
}

// StoredListing is a Listing as read back from the store, with the
// processing state and derived metrics attached.
type StoredListing struct {
	Listing

	EbitdaMarginDB   float64
	AskingMultipleDB float64

	Status        Status
	FirstSeenAt   time.Time
	LastUpdatedAt time.Time
	ProcessedAt   *time.Time
}
