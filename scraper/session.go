package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"business-searcher/utils"
)

// Navigator loads a page and returns its HTML. Fetchers depend on this
// rather than on Session directly so tests can substitute a fake.
type Navigator interface {
	// Navigate loads url and returns the rendered HTML. waitSel, when
	// non-empty, is a CSS selector to wait for before reading the page;
	// its absence is tolerated.
	Navigate(ctx context.Context, url, waitSel string) (string, error)

	// RefreshContext tears down the current browsing context and opens a
	// fresh one, keeping the underlying browser alive.
	RefreshContext() error

	// Close releases the browsing context and browser. Idempotent, safe
	// to call even if the session was never started.
	Close()
}

// SessionConfig tunes the browsing session.
type SessionConfig struct {
	PageTimeout    time.Duration
	ElementTimeout time.Duration

	// Every navigation is preceded by a randomized delay in
	// [MinNavDelay, MaxNavDelay] to reduce detection risk.
	MinNavDelay time.Duration
	MaxNavDelay time.Duration

	ChromeBin string
}

// DefaultSessionConfig returns the recommended timeouts.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PageTimeout:    30 * time.Second,
		ElementTimeout: 5 * time.Second,
		MinNavDelay:    1 * time.Second,
		MaxNavDelay:    3 * time.Second,
	}
}

// Session is a reusable headless-browser session. The browser starts
// lazily on the first navigation and must be released with Close on
// every exit path of a fetch run.
type Session struct {
	cfg    SessionConfig
	logger *utils.Logger

	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// NewSession creates an unstarted Session.
func NewSession(cfg SessionConfig, logger *utils.Logger) *Session {
	return &Session{cfg: cfg, logger: logger}
}

// ensure starts the browser and browsing context on first use.
func (s *Session) ensure() error {
	if s.allocCtx == nil {
		chromeBin := findChromeBinary(s.cfg.ChromeBin)
		s.logger.Debug("[session] Starting browser: %s", chromeBin)

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		)
		if chromeBin != "" {
			opts = append(opts, chromedp.ExecPath(chromeBin))
		}

		s.allocCtx, s.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	if s.browserCtx == nil {
		s.browserCtx, s.cancelBrowser = chromedp.NewContext(s.allocCtx,
			chromedp.WithLogf(func(string, ...interface{}) {}))
	}

	return nil
}

// Navigate loads url with the configured page timeout and returns the
// rendered HTML.
func (s *Session) Navigate(ctx context.Context, url, waitSel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ensure(); err != nil {
		return "", err
	}

	time.Sleep(Jittered(s.cfg.MinNavDelay, s.cfg.MaxNavDelay))

	navCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.PageTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}

	if waitSel != "" {
		waitCtx, cancelWait := context.WithTimeout(s.browserCtx, s.cfg.ElementTimeout)
		// The selector may legitimately be absent; carry on with what loaded.
		if err := chromedp.Run(waitCtx, chromedp.WaitReady(waitSel, chromedp.ByQuery)); err != nil {
			s.logger.Debug("[session] Wait for %q timed out on %s", waitSel, url)
		}
		cancelWait()
	}

	var html string
	htmlCtx, cancelHTML := context.WithTimeout(s.browserCtx, s.cfg.ElementTimeout)
	defer cancelHTML()
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("read page %s: %w", url, err)
	}

	return html, nil
}

// RefreshContext drops the current tab and opens a fresh one. Used when
// sustained detail failures suggest the context is stale or flagged.
func (s *Session) RefreshContext() error {
	if s.cancelBrowser != nil {
		s.cancelBrowser()
		s.browserCtx = nil
		s.cancelBrowser = nil
	}
	return nil
}

// Close releases context then browser. Idempotent.
func (s *Session) Close() {
	if s.cancelBrowser != nil {
		s.cancelBrowser()
		s.browserCtx = nil
		s.cancelBrowser = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.allocCtx = nil
		s.cancelAlloc = nil
	}
}

// IsBlockedTitle reports whether a page title looks like a sign-in or
// verification wall rather than listing content. This is the operational
// definition of being rate-limited or challenged, distinct from a
// network error.
func IsBlockedTitle(title string) bool {
	if title == "" {
		return false
	}
	t := strings.ToLower(title)
	return strings.Contains(t, "sign in") ||
		strings.Contains(t, "log in") ||
		title == "Verified Businesses"
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured override.
func findChromeBinary(override string) string {
	if override != "" {
		return override
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
