package scraper

import (
	"context"
	"errors"
	"fmt"
)

// ErrSold marks a listing detected as already sold. It is a terminal
// classification signal, not a failure: the orchestrator skips the item
// without retrying.
var ErrSold = errors.New("listing is sold")

// ErrSourceUnreachable is returned when the very first search page cannot
// be loaded after retries. It is the only error that aborts a fetch run.
var ErrSourceUnreachable = errors.New("source unreachable")

// BlockedPageError indicates the response was a sign-in/verification wall
// instead of real content. Retried with its own backoff policy.
type BlockedPageError struct {
	URL   string
	Title string
}

func (e *BlockedPageError) Error() string {
	return fmt.Sprintf("blocked page at %s (title %q)", e.URL, e.Title)
}

// IsBlocked reports whether err is a blocked-page detection.
func IsBlocked(err error) bool {
	var be *BlockedPageError
	return errors.As(err, &be)
}

// IsTimeout reports whether err is a page-load timeout. chromedp surfaces
// navigation timeouts as context deadline errors.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
