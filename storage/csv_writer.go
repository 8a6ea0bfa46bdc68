package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"business-searcher/models"
)

// WritePassReport exports prefilter-pass listings to a CSV file, ordered
// by descending asking price. Intermediate directories are created
// automatically. Returns the number of rows written.
func WritePassReport(path string, listings []*models.StoredListing) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	sorted := make([]*models.StoredListing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price > sorted[j].Price
	})

	w := csv.NewWriter(f)

	header := []string{
		"id", "source", "title", "price", "location", "industry",
		"posted_date", "url", "first_seen_at",
	}
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("csv: write header: %w", err)
	}

	for _, l := range sorted {
		posted := ""
		if l.PostedDate != nil {
			posted = l.PostedDate.Format("2006-01-02")
		}
		price := ""
		if l.Price > 0 {
			price = strconv.Itoa(l.Price)
		}
		row := []string{
			l.ID,
			l.Source,
			l.Title,
			price,
			l.Location,
			l.Industry,
			posted,
			l.URL,
			l.FirstSeenAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, err
	}
	return len(sorted), nil
}
