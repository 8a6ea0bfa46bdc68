package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"business-searcher/config"
	"business-searcher/models"
	"business-searcher/scraper"
	"business-searcher/scraper/mock"
	"business-searcher/scraper/seek"
	"business-searcher/services"
	"business-searcher/storage"
	"business-searcher/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = runInit(cfg, logger)
	case "fetch":
		err = runFetch(cfg, logger, args)
	case "get":
		err = runGet(cfg, logger, args)
	case "filter":
		err = runFilter(cfg, logger, args)
	case "list":
		err = runList(cfg, logger, args)
	case "stats":
		err = runStats(cfg, logger)
	case "sources":
		err = runSources(cfg, logger, args)
	case "report":
		err = runReport(cfg, logger, args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: business-searcher <command> [flags]

Commands:
  init      Initialize the database schema
  fetch     Fetch listings from a source (--source all|seekbusiness|mock)
  get       Fetch one listing by id (--id seek_123456)
  filter    Apply the deterministic pre-filter to NEW listings
  list      List stored listings (--status, --limit)
  stats     Show database statistics
  sources   List available sources (--check runs health checks)
  report    Export prefilter-pass listings to CSV (--out)`)
}

// buildSources assembles the fetcher collection handed to commands.
// Explicit construction here replaces any global registry.
func buildSources(cfg *config.Config, logger *utils.Logger) scraper.Sources {
	seekFetcher := seek.New(cfg, logger)
	mockFetcher := mock.New(0)
	return scraper.Sources{
		seekFetcher.Source(): seekFetcher,
		mockFetcher.Source(): mockFetcher,
	}
}

func openStore(cfg *config.Config) (*storage.PostgresStore, error) {
	return storage.NewPostgresStore(cfg.DSN())
}

func runInit(cfg *config.Config, logger *utils.Logger) error {
	logger.Info("Initializing database...")
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Database initialized")
	return nil
}

func runFetch(cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	source := fs.String("source", "all", "source to fetch from, or 'all'")
	location := fs.String("location", cfg.Location, "location slug")
	radius := fs.Int("radius", cfg.RadiusKm, "search radius in km")
	count := fs.Int("count", cfg.FetchCount, "listings to fetch per source")
	noDetails := fs.Bool("no-details", false, "skip detail-page fetches")
	fs.Parse(args)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sources := buildSources(cfg, logger)

	var targets []scraper.Fetcher
	if *source == "all" {
		for _, f := range sources {
			targets = append(targets, f)
		}
	} else {
		f, ok := sources[*source]
		if !ok {
			return fmt.Errorf("unknown source %q (have: %v)", *source, sources.Names())
		}
		targets = []scraper.Fetcher{f}
	}

	var (
		mu       sync.Mutex
		newCount int
		updated  int
		skipped  int
		runErrs  []error
	)

	runOne := func(f scraper.Fetcher) {
		known, err := store.KnownIDs(f.Source())
		if err != nil {
			mu.Lock()
			runErrs = append(runErrs, err)
			mu.Unlock()
			return
		}
		if len(known) > 0 {
			logger.Info("[%s] %d listings already stored, detail fetch skipped for those",
				f.Source(), len(known))
		}

		opts := scraper.FetchOptions{
			Location:     *location,
			RadiusKm:     *radius,
			Count:        *count,
			FetchDetails: !*noDetails,
			KnownIDs:     known,
		}

		var storeErr error
		summary, err := f.Fetch(context.Background(), opts, func(l *models.Listing) bool {
			_, isNew, err := store.Upsert(l)
			if err != nil {
				storeErr = err
				return false
			}
			mu.Lock()
			if isNew {
				newCount++
				logger.Info("New: %s", l.Title)
			} else {
				updated++
				logger.Info("Updated: %s", l.Title)
			}
			mu.Unlock()
			return true
		})

		mu.Lock()
		skipped += summary.Skipped
		if storeErr != nil {
			runErrs = append(runErrs, storeErr)
		}
		if err != nil {
			runErrs = append(runErrs, fmt.Errorf("fetch from %s: %w", f.Source(), err))
		}
		mu.Unlock()
	}

	if len(targets) > 1 {
		// Each run owns its own browsing session; the pool only bounds
		// how many run at once.
		pool := utils.NewWorkerPool(cfg.MaxConcurrency)
		for _, f := range targets {
			f := f
			pool.Submit(func() { runOne(f) })
		}
		pool.Wait()
	} else {
		runOne(targets[0])
	}

	logger.Info("Summary: %d new, %d updated, %d skipped", newCount, updated, skipped)

	if len(runErrs) > 0 {
		return runErrs[0]
	}
	return nil
}

func runGet(cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	id := fs.String("id", "", "listing id, e.g. seek_123456")
	source := fs.String("source", "seekbusiness", "source the id belongs to")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("get: --id is required")
	}

	sources := buildSources(cfg, logger)
	f, ok := sources[*source]
	if !ok {
		return fmt.Errorf("unknown source %q", *source)
	}

	listing, err := f.FetchByID(context.Background(), *id)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	_, isNew, err := store.Upsert(listing)
	if err != nil {
		return err
	}

	state := "updated"
	if isNew {
		state = "new"
	}
	logger.Info("Fetched %s (%s): %s", listing.ID, state, listing.Title)
	return nil
}

func runFilter(cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	maxPrice := fs.Int("max-price", 0, "override max price ceiling")
	maxDays := fs.Int("max-days", 0, "override max days listed")
	reset := fs.Bool("reset", false, "reset all listings to NEW before filtering")
	fs.Parse(args)

	rules, err := config.LoadFilterRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	if *maxPrice > 0 {
		rules.MaxPrice = *maxPrice
	}
	if *maxDays > 0 {
		rules.MaxDaysListed = *maxDays
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if *reset {
		n, err := store.ResetAllToNew()
		if err != nil {
			return err
		}
		logger.Info("Reset %d listings to NEW", n)
	}

	logger.Info("Applying pre-filter (max price $%d, max days %d)...",
		rules.MaxPrice, rules.MaxDaysListed)

	prefilter := services.NewPrefilter(store, rules, logger)
	sum, err := prefilter.Run()
	if err != nil {
		return err
	}

	logger.Info("Summary: %d passed, %d failed, %d SOLD skipped", sum.Passed, sum.Failed, sum.Sold)
	return nil
}

func runList(cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	statusStr := fs.String("status", "all", "filter by status")
	limit := fs.Int("limit", 20, "max rows")
	fs.Parse(args)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var listings []*models.StoredListing
	if *statusStr == "all" {
		listings, err = store.ListAll(*limit)
	} else {
		status, ok := models.ParseStatus(*statusStr)
		if !ok {
			return fmt.Errorf("unknown status %q", *statusStr)
		}
		listings, err = store.ListByStatus(status, *limit)
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%-20s %-15s %12s %12s %8s  %s\n", "ID", "STATUS", "PRICE", "REVENUE", "MARGIN", "TITLE")
	fmt.Println(strings.Repeat("-", 100))
	for _, l := range listings {
		price, rev, margin := "N/A", "N/A", "N/A"
		if l.Price > 0 {
			price = fmt.Sprintf("$%d", l.Price)
		}
		if l.Revenue > 0 {
			rev = fmt.Sprintf("$%d", l.Revenue)
		}
		if l.EbitdaMarginDB > 0 {
			margin = fmt.Sprintf("%.1f%%", l.EbitdaMarginDB*100)
		}
		fmt.Printf("%-20.20s %-15s %12s %12s %8s  %.40s\n",
			l.ID, l.Status, price, rev, margin, l.Title)
	}
	fmt.Printf("\nTotal: %d listings\n", len(listings))
	return nil
}

func runStats(cfg *config.Config, logger *utils.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("\nTotal listings: %d\n\nBy status:\n", stats.Total)
	for _, status := range models.AllStatuses {
		fmt.Printf("  %-15s %d\n", status, stats.ByStatus[status])
	}
	return nil
}

func runSources(cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	check := fs.Bool("check", false, "run a health check against each source")
	fs.Parse(args)

	sources := buildSources(cfg, logger)
	names := sources.Names()
	sort.Strings(names)

	fmt.Println("\nAvailable sources:")
	for _, name := range names {
		if *check {
			status := "unreachable"
			if sources[name].HealthCheck(context.Background()) {
				status = "ok"
			}
			fmt.Printf("  - %s (%s)\n", name, status)
		} else {
			fmt.Printf("  - %s\n", name)
		}
	}
	return nil
}

func runReport(cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	out := fs.String("out", cfg.ReportPath, "output CSV path")
	fs.Parse(args)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	listings, err := store.ListByStatus(models.StatusPrefilterPass, 0)
	if err != nil {
		return err
	}

	n, err := storage.WritePassReport(*out, listings)
	if err != nil {
		return err
	}

	logger.Info("Wrote %d prefilter-pass listings to %s", n, *out)
	return nil
}
