package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsBlocked(t *testing.T) {
	be := &BlockedPageError{URL: "https://example.com/listing/1", Title: "Sign in"}
	if !IsBlocked(be) {
		t.Error("BlockedPageError must classify as blocked")
	}
	if !IsBlocked(fmt.Errorf("page load: %w", be)) {
		t.Error("wrapped BlockedPageError must classify as blocked")
	}
	if IsBlocked(errors.New("connection refused")) {
		t.Error("plain error must not classify as blocked")
	}
	if !strings.Contains(be.Error(), "Sign in") {
		t.Errorf("error message should carry the page title: %q", be.Error())
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("deadline exceeded must classify as timeout")
	}
	if !IsTimeout(fmt.Errorf("navigate: %w", context.DeadlineExceeded)) {
		t.Error("wrapped deadline must classify as timeout")
	}
	if IsTimeout(context.Canceled) {
		t.Error("cancellation is not a timeout")
	}
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("%w: first page failed", ErrSourceUnreachable)
	if !errors.Is(err, ErrSourceUnreachable) {
		t.Error("wrapped sentinel must match with errors.Is")
	}
	if errors.Is(err, ErrSold) {
		t.Error("sentinels must not match each other")
	}
}
