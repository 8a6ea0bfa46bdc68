package mock

import (
	"context"
	"testing"

	"business-searcher/models"
	"business-searcher/scraper"
)

func TestFetchGeneratesRequestedCount(t *testing.T) {
	f := New(42)

	var emitted []*models.Listing
	sum, err := f.Fetch(context.Background(), scraper.FetchOptions{Count: 5},
		func(l *models.Listing) bool {
			emitted = append(emitted, l)
			return true
		})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sum.Fetched != 5 || len(emitted) != 5 {
		t.Fatalf("fetched = %d, emitted = %d, want 5", sum.Fetched, len(emitted))
	}

	for _, l := range emitted {
		if l.Source != "mock" {
			t.Errorf("source = %q", l.Source)
		}
		if l.Revenue <= 0 || l.Ebitda <= 0 || l.Price <= 0 {
			t.Errorf("financials must all be present: %+v", l)
		}
		if l.Ebitda >= l.Revenue {
			t.Errorf("ebitda %d must be below revenue %d", l.Ebitda, l.Revenue)
		}
		if l.PostedDate == nil {
			t.Error("posted date missing")
		}
		if l.RawData["detail_fetched"] != true {
			t.Error("detail_fetched should be true for synthetic listings")
		}
	}
}

func TestFetchSkipsKnownIDs(t *testing.T) {
	f := New(42)

	var ids []string
	_, err := f.Fetch(context.Background(), scraper.FetchOptions{Count: 3},
		func(l *models.Listing) bool {
			ids = append(ids, l.ID)
			return true
		})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	known := map[string]struct{}{ids[0]: {}, ids[1]: {}}
	sum, err := New(42).Fetch(context.Background(),
		scraper.FetchOptions{Count: 3, KnownIDs: known},
		func(*models.Listing) bool { return true })
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sum.Skipped != 2 || sum.Fetched != 1 {
		t.Errorf("summary = %+v, want 1 fetched / 2 skipped", sum)
	}
}

func TestFetchByID(t *testing.T) {
	f := New(1)

	l, err := f.FetchByID(context.Background(), "mock_3_20260831")
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	if l.Source != "mock" || l.Title == "" {
		t.Errorf("unexpected listing %+v", l)
	}

	if _, err := f.FetchByID(context.Background(), "garbage"); err == nil {
		t.Error("expected an error for a malformed id")
	}
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(1).Fetch(ctx, scraper.FetchOptions{Count: 3},
		func(*models.Listing) bool { return true }); err == nil {
		t.Fatal("expected context error")
	}
}
