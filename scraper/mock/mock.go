// Package mock generates synthetic business listings for testing the
// pipeline without touching a real source.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"business-searcher/models"
	"business-searcher/scraper"
)

const sourceName = "mock"

var industries = []string{
	"Plumbing Services",
	"HVAC Installation & Repair",
	"Commercial Cleaning",
	"Auto Repair Shop",
	"Landscaping & Lawn Care",
	"Electrical Contracting",
	"Pest Control Services",
	"Coffee Shop / Cafe",
	"Digital Marketing Agency",
	"IT Services & Support",
	"Manufacturing - Industrial Parts",
	"Distribution - Wholesale Goods",
	"Restaurant - Fast Casual",
	"Fitness Center / Gym",
	"Medical Practice",
}

var locations = []string{
	"Brisbane, QLD",
	"Sydney, NSW",
	"Melbourne, VIC",
	"Perth, WA",
	"Adelaide, SA",
	"Gold Coast, QLD",
}

var titleTemplates = []string{
	"Profitable %s with Established Customer Base",
	"Turnkey %s - Owner Retiring",
	"Growing %s - High Margins",
	"Well-Established %s - 20+ Years",
	"Scalable %s with Recurring Revenue",
}

// Fetcher synthesizes listings with realistic financial ratios: a mix of
// records that pass and fail the prefilter.
type Fetcher struct {
	rng *rand.Rand
}

// New creates a mock Fetcher. A zero seed means non-deterministic output.
func New(seed int64) *Fetcher {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Fetcher{rng: rand.New(rand.NewSource(seed))}
}

func (f *Fetcher) Source() string { return sourceName }

// Fetch generates opts.Count listings and streams them to emit.
func (f *Fetcher) Fetch(ctx context.Context, opts scraper.FetchOptions, emit scraper.EmitFunc) (scraper.Summary, error) {
	count := opts.Count
	if count <= 0 {
		count = 10
	}

	var sum scraper.Summary
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		listing := f.generate(i)
		if _, known := opts.KnownIDs[listing.ID]; known {
			sum.Skipped++
			continue
		}

		sum.Fetched++
		if !emit(listing) {
			break
		}
	}
	return sum, nil
}

// FetchByID regenerates the listing whose id encodes its index.
func (f *Fetcher) FetchByID(_ context.Context, id string) (*models.Listing, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 2 {
		return nil, fmt.Errorf("mock: malformed id %q", id)
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("mock: malformed id %q", id)
	}
	return f.generate(idx), nil
}

func (f *Fetcher) HealthCheck(context.Context) bool { return true }

func (f *Fetcher) generate(idx int) *models.Listing {
	industry := industries[f.rng.Intn(len(industries))]
	location := locations[f.rng.Intn(len(locations))]
	template := titleTemplates[f.rng.Intn(len(titleTemplates))]

	revenue := 200_000 + f.rng.Intn(1_800_000)
	margin := 0.05 + f.rng.Float64()*0.30
	ebitda := int(float64(revenue) * margin)
	price := int(float64(ebitda) * (2.0 + f.rng.Float64()*3.0))

	posted := time.Now().UTC().AddDate(0, 0, -f.rng.Intn(31))
	posted = time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC)

	id := fmt.Sprintf("mock_%d_%s", idx, time.Now().Format("20060102"))

	return &models.Listing{
		ID:     id,
		Source: sourceName,
		Title:  fmt.Sprintf(template, industry),
		Description: fmt.Sprintf(
			"Well-established %s operating in %s for over 15 years. "+
				"Strong reputation with excellent customer retention. "+
				"Annual revenue of $%d with %.1f%% EBITDA margin. "+
				"Trained staff in place. Owner willing to provide transition training.",
			industry, location, revenue, margin*100),
		Price:      price,
		Revenue:    revenue,
		Ebitda:     ebitda,
		Location:   location,
		Industry:   industry,
		URL:        "https://example.com/listing/" + id,
		PostedDate: &posted,
		RawData: map[string]any{
			"employees":          2 + f.rng.Intn(24),
			"years_in_business":  5 + f.rng.Intn(26),
			"reason_for_selling": []string{"Retirement", "Relocation", "New venture", "Health reasons"}[f.rng.Intn(4)],
			"detail_fetched":     true,
		},
	}
}
