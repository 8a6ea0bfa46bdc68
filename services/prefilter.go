package services

import (
	"fmt"
	"strings"
	"time"

	"business-searcher/config"
	"business-searcher/models"
	"business-searcher/storage"
	"business-searcher/utils"
)

// Evaluate applies the deterministic ruleset to one listing. Checks run
// in a fixed order (price, industry, title, freshness) and every
// applicable check runs: a failure appends its reason without stopping
// the rest.
//
// The literal title keyword "franchise" is forgiven when the industry
// matches one of the franchise-allowed industries; all other excluded
// keywords are never forgiven. Unparsable or absent posted dates pass
// the freshness check (fail-open).
func Evaluate(l *models.Listing, rules *config.FilterRules, now time.Time) (bool, []string) {
	var reasons []string
	passes := true

	if l.Price > 0 && l.Price > rules.MaxPrice {
		passes = false
		reasons = append(reasons, fmt.Sprintf("Price $%s exceeds max $%s",
			formatAmount(l.Price), formatAmount(rules.MaxPrice)))
	}

	if l.Industry != "" {
		industryLower := strings.ToLower(l.Industry)
		for _, excluded := range rules.ExcludedIndustries {
			if strings.Contains(industryLower, strings.ToLower(excluded)) {
				passes = false
				reasons = append(reasons, fmt.Sprintf("Industry '%s' matches exclusion '%s'",
					l.Industry, excluded))
				break
			}
		}
	}

	if l.Title != "" {
		titleLower := strings.ToLower(l.Title)
		industryLower := strings.ToLower(l.Industry)

		for _, excluded := range rules.ExcludedTitleKeywords {
			keyword := strings.ToLower(excluded)
			if !strings.Contains(titleLower, keyword) {
				continue
			}

			if keyword == "franchise" && franchiseAllowed(industryLower, rules) {
				continue
			}

			passes = false
			reasons = append(reasons, fmt.Sprintf("Title contains excluded keyword '%s'", excluded))
			break
		}
	}

	if rules.MaxDaysListed > 0 && l.PostedDate != nil {
		daysListed := int(now.UTC().Sub(*l.PostedDate).Hours() / 24)
		if daysListed > rules.MaxDaysListed {
			passes = false
			reasons = append(reasons, fmt.Sprintf("Listed %d days ago (max %d)",
				daysListed, rules.MaxDaysListed))
		}
	}

	return passes, reasons
}

func franchiseAllowed(industryLower string, rules *config.FilterRules) bool {
	for _, allowed := range rules.FranchiseAllowedIndustries {
		if strings.Contains(industryLower, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

// formatAmount renders a whole-unit amount with comma grouping.
func formatAmount(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// PrefilterSummary reports what a filtering run did.
type PrefilterSummary struct {
	Passed int
	Failed int
	Sold   int
}

// Prefilter walks NEW listings, classifies each and advances its status.
type Prefilter struct {
	store  storage.ListingStore
	rules  *config.FilterRules
	logger *utils.Logger
}

// NewPrefilter creates a Prefilter sharing the ruleset read-only across
// the run.
func NewPrefilter(store storage.ListingStore, rules *config.FilterRules, logger *utils.Logger) *Prefilter {
	return &Prefilter{store: store, rules: rules, logger: logger}
}

// Run classifies every NEW listing. Sold listings bypass evaluation and
// are forced straight to PREFILTER_FAIL.
func (p *Prefilter) Run() (PrefilterSummary, error) {
	var sum PrefilterSummary

	listings, err := p.store.ListByStatus(models.StatusNew, 0)
	if err != nil {
		return sum, fmt.Errorf("prefilter: load new listings: %w", err)
	}

	now := time.Now()

	for _, stored := range listings {
		l := &stored.Listing

		if l.IsSold() {
			if err := p.store.SetStatus(l.ID, models.StatusPrefilterFail, nil); err != nil {
				return sum, fmt.Errorf("prefilter: %s: %w", l.ID, err)
			}
			sum.Sold++
			p.logger.Info("[prefilter] SOLD (skipped): %s", truncate(l.Title, 50))
			continue
		}

		passes, reasons := Evaluate(l, p.rules, now)

		status := models.StatusPrefilterFail
		if passes {
			status = models.StatusPrefilterPass
		}
		if err := p.store.SetStatus(l.ID, status, nil); err != nil {
			return sum, fmt.Errorf("prefilter: %s: %w", l.ID, err)
		}

		if passes {
			sum.Passed++
			p.logger.Info("[prefilter] PASS: %s", truncate(l.Title, 50))
		} else {
			sum.Failed++
			p.logger.Info("[prefilter] FAIL: %s", truncate(l.Title, 50))
			for _, reason := range reasons {
				p.logger.Info("[prefilter]   - %s", reason)
			}
		}
	}

	return sum, nil
}

// Candidates returns listings that passed the prefilter.
func (p *Prefilter) Candidates(limit int) ([]*models.StoredListing, error) {
	return p.store.ListByStatus(models.StatusPrefilterPass, limit)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
