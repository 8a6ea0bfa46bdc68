package services

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"business-searcher/config"
	"business-searcher/models"
	"business-searcher/storage"
	"business-searcher/utils"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func TestEvaluatePriceCeiling(t *testing.T) {
	rules := config.DefaultFilterRules()
	rules.MaxPrice = 1_000_000

	l := &models.Listing{
		Title:    "Established Business",
		Price:    1_200_000,
		Industry: "Plumbing Services",
	}

	passes, reasons := Evaluate(l, rules, testNow)
	if passes {
		t.Fatal("listing over max price should fail")
	}
	want := []string{"Price $1,200,000 exceeds max $1,000,000"}
	if !reflect.DeepEqual(reasons, want) {
		t.Errorf("reasons = %v, want %v", reasons, want)
	}
}

func TestEvaluatePriceAbsentPasses(t *testing.T) {
	rules := config.DefaultFilterRules()

	l := &models.Listing{Title: "Established Business", Industry: "Manufacturing"}
	passes, reasons := Evaluate(l, rules, testNow)
	if !passes {
		t.Errorf("listing with no price should pass, got reasons %v", reasons)
	}
}

func TestEvaluateIndustryExclusion(t *testing.T) {
	rules := config.DefaultFilterRules()

	l := &models.Listing{
		Title:    "Busy Corner Shop",
		Industry: "Retail > Convenience Stores",
	}

	passes, reasons := Evaluate(l, rules, testNow)
	if passes {
		t.Fatal("retail industry should fail")
	}
	if len(reasons) != 1 || !strings.Contains(reasons[0], "retail") {
		t.Errorf("expected single reason citing 'retail', got %v", reasons)
	}
}

func TestEvaluateTitleExclusionDrivingSchool(t *testing.T) {
	rules := config.DefaultFilterRules()

	l := &models.Listing{
		Title:    "Driving School for Sale",
		Industry: "Education",
	}

	passes, reasons := Evaluate(l, rules, testNow)
	if passes {
		t.Fatal("driving school title should fail")
	}
	found := false
	for _, r := range reasons {
		if strings.Contains(r, "driving school") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a reason citing 'driving school', got %v", reasons)
	}
}

func TestEvaluateFranchiseException(t *testing.T) {
	rules := config.DefaultFilterRules()

	allowed := &models.Listing{
		Title:    "Profitable Franchise Opportunity",
		Industry: "Legal Services",
	}
	passes, reasons := Evaluate(allowed, rules, testNow)
	if !passes {
		t.Errorf("franchise in legal services should pass, got reasons %v", reasons)
	}

	denied := &models.Listing{
		Title:    "Profitable Franchise Opportunity",
		Industry: "Retail",
	}
	passes, reasons = Evaluate(denied, rules, testNow)
	if passes {
		t.Fatal("franchise in retail should fail")
	}
	cited := false
	for _, r := range reasons {
		if strings.Contains(r, "franchise") {
			cited = true
		}
	}
	if !cited {
		t.Errorf("expected a reason citing 'franchise', got %v", reasons)
	}
}

func TestEvaluateFreshness(t *testing.T) {
	rules := config.DefaultFilterRules()
	rules.MaxDaysListed = 60

	stale := testNow.AddDate(0, 0, -90)
	l := &models.Listing{Title: "Old Listing", Industry: "Manufacturing", PostedDate: &stale}

	passes, reasons := Evaluate(l, rules, testNow)
	if passes {
		t.Fatal("90-day-old listing should fail with max 60")
	}
	want := "Listed 90 days ago (max 60)"
	if len(reasons) != 1 || reasons[0] != want {
		t.Errorf("reasons = %v, want [%s]", reasons, want)
	}

	// Absent posted date fails open.
	fresh := &models.Listing{Title: "No Date", Industry: "Manufacturing"}
	if passes, _ := Evaluate(fresh, rules, testNow); !passes {
		t.Error("listing without posted date should pass the freshness check")
	}
}

func TestEvaluateAccumulatesReasonsInOrder(t *testing.T) {
	rules := config.DefaultFilterRules()
	rules.MaxPrice = 500_000
	rules.MaxDaysListed = 30

	stale := testNow.AddDate(0, 0, -45)
	l := &models.Listing{
		Title:      "Coffee Franchise for Sale",
		Price:      800_000,
		Industry:   "Coffee Shop / Cafe",
		PostedDate: &stale,
	}

	passes, reasons := Evaluate(l, rules, testNow)
	if passes {
		t.Fatal("listing should fail")
	}
	if len(reasons) != 4 {
		t.Fatalf("expected 4 reasons (price, industry, title, freshness), got %v", reasons)
	}
	if !strings.HasPrefix(reasons[0], "Price") {
		t.Errorf("reason 0 should be the price check, got %q", reasons[0])
	}
	if !strings.HasPrefix(reasons[1], "Industry") {
		t.Errorf("reason 1 should be the industry check, got %q", reasons[1])
	}
	if !strings.HasPrefix(reasons[2], "Title") {
		t.Errorf("reason 2 should be the title check, got %q", reasons[2])
	}
	if !strings.HasPrefix(reasons[3], "Listed") {
		t.Errorf("reason 3 should be the freshness check, got %q", reasons[3])
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	rules := config.DefaultFilterRules()
	l := &models.Listing{
		Title:    "Gym and Fitness Studio",
		Price:    2_000_000,
		Industry: "Fitness Center",
	}

	p1, r1 := Evaluate(l, rules, testNow)
	p2, r2 := Evaluate(l, rules, testNow)
	if p1 != p2 || !reflect.DeepEqual(r1, r2) {
		t.Errorf("Evaluate not deterministic: (%v, %v) vs (%v, %v)", p1, r1, p2, r2)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1200000, "1,200,000"},
		{47500, "47,500"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.n); got != tt.want {
			t.Errorf("formatAmount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// fakeStore implements storage.ListingStore in memory.
type fakeStore struct {
	listings map[string]*models.StoredListing
	statuses map[string]models.Status
}

func newFakeStore(listings ...*models.Listing) *fakeStore {
	fs := &fakeStore{
		listings: make(map[string]*models.StoredListing),
		statuses: make(map[string]models.Status),
	}
	for _, l := range listings {
		fs.listings[l.ID] = &models.StoredListing{Listing: *l, Status: models.StatusNew}
		fs.statuses[l.ID] = models.StatusNew
	}
	return fs
}

func (f *fakeStore) Exists(id, source string) (bool, error) {
	_, ok := f.listings[id]
	return ok, nil
}

func (f *fakeStore) Upsert(l *models.Listing) (*models.StoredListing, bool, error) {
	_, existed := f.listings[l.ID]
	stored := &models.StoredListing{Listing: *l, Status: models.StatusNew}
	if existed {
		stored.Status = f.statuses[l.ID]
	} else {
		f.statuses[l.ID] = models.StatusNew
	}
	f.listings[l.ID] = stored
	return stored, !existed, nil
}

func (f *fakeStore) Get(id string) (*models.StoredListing, error) {
	return f.listings[id], nil
}

func (f *fakeStore) SetStatus(id string, status models.Status, _ *time.Time) error {
	current, ok := f.statuses[id]
	if !ok {
		return fmt.Errorf("no listing %s", id)
	}
	if !current.CanTransitionTo(status) {
		return fmt.Errorf("invalid transition %s -> %s", current, status)
	}
	f.statuses[id] = status
	f.listings[id].Status = status
	return nil
}

func (f *fakeStore) ListByStatus(status models.Status, limit int) ([]*models.StoredListing, error) {
	var out []*models.StoredListing
	for _, l := range f.listings {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(limit int) ([]*models.StoredListing, error) {
	var out []*models.StoredListing
	for _, l := range f.listings {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeStore) ResetAllToNew() (int64, error) {
	for id := range f.statuses {
		f.statuses[id] = models.StatusNew
		f.listings[id].Status = models.StatusNew
	}
	return int64(len(f.statuses)), nil
}

func (f *fakeStore) Stats() (*storage.Stats, error) {
	stats := &storage.Stats{ByStatus: make(map[models.Status]int)}
	for _, s := range f.statuses {
		stats.ByStatus[s]++
		stats.Total++
	}
	return stats, nil
}

func (f *fakeStore) KnownIDs(string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	for id := range f.listings {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (f *fakeStore) Close() error { return nil }

func TestPrefilterSoldShortCircuit(t *testing.T) {
	sold := &models.Listing{
		ID:       "seek_1",
		Source:   "seekbusiness",
		Title:    "Cafe Business — SOLD",
		Price:    50_000,
		Industry: "Manufacturing",
	}
	ok := &models.Listing{
		ID:       "seek_2",
		Source:   "seekbusiness",
		Title:    "Industrial Parts Manufacturer",
		Price:    800_000,
		Industry: "Manufacturing",
	}

	store := newFakeStore(sold, ok)
	p := NewPrefilter(store, config.DefaultFilterRules(), newTestLogger())

	sum, err := p.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Sold != 1 || sum.Passed != 1 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want 1 sold, 1 passed, 0 failed", sum)
	}
	if store.statuses["seek_1"] != models.StatusPrefilterFail {
		t.Errorf("sold listing status = %s, want prefilter_fail", store.statuses["seek_1"])
	}
	if store.statuses["seek_2"] != models.StatusPrefilterPass {
		t.Errorf("passing listing status = %s, want prefilter_pass", store.statuses["seek_2"])
	}
}

func TestPrefilterFailSetsStatus(t *testing.T) {
	expensive := &models.Listing{
		ID:       "seek_3",
		Source:   "seekbusiness",
		Title:    "Large Logistics Operation",
		Price:    5_000_000,
		Industry: "Manufacturing",
	}

	store := newFakeStore(expensive)
	p := NewPrefilter(store, config.DefaultFilterRules(), newTestLogger())

	sum, err := p.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", sum)
	}
	if store.statuses["seek_3"] != models.StatusPrefilterFail {
		t.Errorf("status = %s, want prefilter_fail", store.statuses["seek_3"])
	}
}
