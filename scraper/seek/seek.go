// Package seek fetches business-for-sale listings from seekbusiness.com.au.
//
// Financial data on Seek is inconsistently disclosed, so the fetcher
// prioritizes capturing the description text over revenue/EBITDA figures.
package seek

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"business-searcher/config"
	"business-searcher/models"
	"business-searcher/scraper"
	"business-searcher/utils"
)

const (
	baseURL    = "https://www.seekbusiness.com.au"
	sourceName = "seekbusiness"

	resultCardSel = `[data-testid='search-listings-result-item']`
)

// Fetcher drives paginated search and per-item detail retrieval against
// Seek Business through a headless-browser session.
type Fetcher struct {
	cfg    *config.Config
	logger *utils.Logger
	nav    scraper.Navigator

	netBackoff     scraper.Backoff
	blockedBackoff scraper.Backoff
	maxRetries     int

	failureThreshold int
	refreshSleepMin  time.Duration
	refreshSleepMax  time.Duration

	sleep func(time.Duration)
}

// New creates a ready-to-use Seek Business fetcher. The browsing session
// starts lazily on the first navigation.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	session := scraper.NewSession(scraper.SessionConfig{
		PageTimeout:    time.Duration(cfg.PageTimeoutSec) * time.Second,
		ElementTimeout: time.Duration(cfg.ElementTimeoutSec) * time.Second,
		MinNavDelay:    time.Duration(cfg.MinNavDelayMs) * time.Millisecond,
		MaxNavDelay:    time.Duration(cfg.MaxNavDelayMs) * time.Millisecond,
		ChromeBin:      cfg.ChromeBin,
	}, logger)

	return &Fetcher{
		cfg:              cfg,
		logger:           logger,
		nav:              session,
		netBackoff:       scraper.Network,
		blockedBackoff:   scraper.Blocked,
		maxRetries:       cfg.MaxRetries,
		failureThreshold: cfg.FailureThreshold,
		refreshSleepMin:  time.Duration(cfg.RefreshSleepMinSec) * time.Second,
		refreshSleepMax:  time.Duration(cfg.RefreshSleepMaxSec) * time.Second,
		sleep:            time.Sleep,
	}
}

// Source returns the source name listings are tagged with.
func (f *Fetcher) Source() string { return sourceName }

// Fetch pages through search results, streaming each resolved listing to
// emit until opts.Count listings have been yielded or a page comes back
// empty. The session is released on every exit path.
func (f *Fetcher) Fetch(ctx context.Context, opts scraper.FetchOptions, emit scraper.EmitFunc) (scraper.Summary, error) {
	defer f.nav.Close()

	if opts.Location == "" {
		opts.Location = f.cfg.Location
	}
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = f.cfg.RadiusKm
	}
	if opts.Count <= 0 {
		opts.Count = f.cfg.FetchCount
	}

	searchURL := buildSearchURL(opts.Location, opts.RadiusKm)
	f.logger.Info("[seek] Fetching from %s (target: %d listings)", searchURL, opts.Count)

	var sum scraper.Summary
	seen := utils.NewIDSet()
	consecutiveFailures := 0
	pageNum := 1

	for sum.Fetched < opts.Count {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		pageURL := fmt.Sprintf("%s&pg=%d", searchURL, pageNum)
		f.logger.Info("[seek] Page %d — progress: %d/%d fetched, %d skipped",
			pageNum, sum.Fetched, opts.Count, sum.Skipped)

		cards, err := f.fetchListPage(ctx, pageURL)
		if err != nil {
			if pageNum == 1 {
				return sum, fmt.Errorf("%w: %v", scraper.ErrSourceUnreachable, err)
			}
			f.logger.Error("[seek] Page %d failed after retries: %v", pageNum, err)
			break
		}
		if len(cards) == 0 {
			f.logger.Info("[seek] No more listings on page %d", pageNum)
			break
		}

		f.logger.Debug("[seek] Page %d — found %d result cards", pageNum, len(cards))

		for _, card := range cards {
			if sum.Fetched >= opts.Count {
				break
			}

			info := parseSummary(card)
			if info == nil {
				f.logger.Debug("[seek] Skipping card without recoverable id")
				continue
			}

			if !seen.Add(info.ID) {
				sum.Skipped++
				continue
			}

			if strings.Contains(strings.ToLower(info.Title), "sold") {
				sum.Skipped++
				f.logger.Info("[seek] Skipping SOLD: %s", truncate(info.Title, 50))
				continue
			}

			if _, known := opts.KnownIDs[info.ID]; known {
				sum.Skipped++
				f.logger.Debug("[seek] Already known: %s", truncate(info.Title, 50))
				continue
			}

			var det *detailInfo
			detailFailed := false

			if opts.FetchDetails && info.URL != "" {
				d, err := f.fetchDetailPage(ctx, info.URL)
				switch {
				case errors.Is(err, scraper.ErrSold):
					sum.Skipped++
					f.logger.Info("[seek] Skipping SOLD (detail): %s", truncate(info.Title, 50))
					continue
				case err != nil:
					if scraper.IsTimeout(err) {
						f.logger.Warn("[seek] Detail page timed out: %s", truncate(info.Title, 50))
					}
					detailFailed = true
				default:
					det = d
					if det.Title != "" {
						info.Title = det.Title
					}
				}
			}

			if detailFailed {
				consecutiveFailures++
				if consecutiveFailures >= f.failureThreshold {
					f.logger.Warn("[seek] %d consecutive detail failures, refreshing browser context",
						consecutiveFailures)
					if err := f.nav.RefreshContext(); err != nil {
						f.logger.Error("[seek] Context refresh failed: %v", err)
					}
					consecutiveFailures = 0
					f.sleep(scraper.Jittered(f.refreshSleepMin, f.refreshSleepMax))
				}
				f.logger.Info("[seek] Yielding summary-only: %s", truncate(info.Title, 50))
			} else {
				consecutiveFailures = 0
			}

			listing := buildListing(info, det, detailFailed)

			sum.Fetched++
			f.logger.Info("[seek] [%d/%d] %s (desc: %v)",
				sum.Fetched, opts.Count, truncate(listing.Title, 50), listing.Description != "")

			if !emit(listing) {
				return sum, nil
			}
		}

		pageNum++
	}

	f.logger.Info("[seek] Run complete — %d fetched, %d skipped", sum.Fetched, sum.Skipped)
	return sum, nil
}

// FetchByID retrieves one listing through the id-scoped search page.
func (f *Fetcher) FetchByID(ctx context.Context, id string) (*models.Listing, error) {
	defer f.nav.Close()

	numericID := strings.TrimPrefix(id, "seek_")
	searchURL := fmt.Sprintf("%s/businesses-for-sale?page=1&id=%s", baseURL, numericID)

	html, err := f.nav.Navigate(ctx, searchURL, resultCardSel)
	if err != nil {
		return nil, fmt.Errorf("seek: lookup %s: %w", id, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("seek: parse lookup page: %w", err)
	}

	card := doc.Find(resultCardSel).First()
	if card.Length() == 0 {
		return nil, fmt.Errorf("seek: no listing found for id %s", id)
	}

	info := parseSummary(card)
	if info == nil {
		return nil, fmt.Errorf("seek: could not parse listing %s", id)
	}

	det, err := f.fetchDetailPage(ctx, info.URL)
	if errors.Is(err, scraper.ErrSold) {
		return nil, err
	}
	detailFailed := err != nil
	if det != nil && det.Title != "" {
		info.Title = det.Title
	}

	return buildListing(info, det, detailFailed), nil
}

// HealthCheck loads the homepage and checks the title looks like content.
func (f *Fetcher) HealthCheck(ctx context.Context) bool {
	defer f.nav.Close()

	html, err := f.nav.Navigate(ctx, baseURL, "")
	if err != nil {
		return false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	title := doc.Find("title").First().Text()
	return strings.Contains(strings.ToLower(title), "business")
}

// fetchListPage loads a search page with retries and returns its result
// cards. Retry exhaustion returns the last error; a loaded page with no
// cards is end-of-results, not an error.
func (f *Fetcher) fetchListPage(ctx context.Context, pageURL string) ([]*goquery.Selection, error) {
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		html, err := f.nav.Navigate(ctx, pageURL, resultCardSel)
		if err == nil {
			doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
			if perr != nil {
				return nil, fmt.Errorf("parse page: %w", perr)
			}

			pageTitle := strings.TrimSpace(doc.Find("title").First().Text())
			if scraper.IsBlockedTitle(pageTitle) {
				err = &scraper.BlockedPageError{URL: pageURL, Title: pageTitle}
			} else {
				var cards []*goquery.Selection
				doc.Find(resultCardSel).Each(func(_ int, s *goquery.Selection) {
					cards = append(cards, s)
				})
				return cards, nil
			}
		}

		lastErr = err
		if attempt < f.maxRetries {
			backoff := f.netBackoff
			if scraper.IsBlocked(err) {
				backoff = f.blockedBackoff
			}
			delay := backoff.Delay(attempt)
			f.logger.Warn("[seek] Page load failed (attempt %d/%d): %v — retrying in %v",
				attempt, f.maxRetries, err, delay)
			f.sleep(delay)
		}
	}

	return nil, lastErr
}

// fetchDetailPage loads a detail page and extracts title, description,
// posted date and embedded structured data.
//
// Transient failures retry on the network backoff, blocked pages on the
// harder blocked backoff. A sold title short-circuits with ErrSold and is
// never retried. When every attempt stays blocked, the title degrades to
// the URL slug rather than failing the item.
func (f *Fetcher) fetchDetailPage(ctx context.Context, detailURL string) (*detailInfo, error) {
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		html, err := f.nav.Navigate(ctx, detailURL, "h1")
		if err != nil {
			lastErr = err
			if attempt < f.maxRetries {
				delay := f.netBackoff.Delay(attempt)
				f.logger.Warn("[seek] Detail fetch error (attempt %d/%d): %v — retrying in %v",
					attempt, f.maxRetries, err, delay)
				f.sleep(delay)
				continue
			}
			return nil, lastErr
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("parse detail page: %w", err)
		}

		title := extractDetailTitle(doc)

		if title != "" && strings.Contains(strings.ToLower(title), "sold") {
			return nil, scraper.ErrSold
		}

		if scraper.IsBlockedTitle(title) {
			if attempt < f.maxRetries {
				delay := f.blockedBackoff.Delay(attempt)
				f.logger.Warn("[seek] Blocked (attempt %d/%d), waiting %v", attempt, f.maxRetries, delay)
				f.sleep(delay)
				continue
			}
			f.logger.Warn("[seek] Blocked after %d attempts, using URL title fallback", f.maxRetries)
			title = titleFromURL(detailURL)
		}

		relative, posted := extractPostedDate(doc.Text(), time.Now())

		return &detailInfo{
			Title:          title,
			Description:    extractDescription(doc),
			PostedRelative: relative,
			PostedDate:     posted,
			Structured:     extractStructuredData(html),
		}, nil
	}

	return nil, lastErr
}

func buildListing(info *summaryInfo, det *detailInfo, detailFailed bool) *models.Listing {
	raw := map[string]any{
		"broker_name":    info.BrokerName,
		"listing_type":   info.ListingType,
		"detail_fetched": !detailFailed && det != nil,
	}

	listing := &models.Listing{
		ID:       info.ID,
		Source:   sourceName,
		Title:    info.Title,
		Price:    info.Price,
		Location: info.Location,
		Industry: info.Industry,
		URL:      info.URL,
		RawData:  raw,
	}

	if det != nil {
		listing.Description = det.Description
		listing.PostedDate = det.PostedDate
		raw["posted_date_relative"] = det.PostedRelative
		raw["structured_data"] = det.Structured
	}

	return listing
}

func buildSearchURL(location string, radiusKm int) string {
	return fmt.Sprintf("%s/businesses-for-sale/in-%s?rad=%d", baseURL, location, radiusKm)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
