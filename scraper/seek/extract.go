package seek

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	listingIDRe = regexp.MustCompile(`/business-listing/[^/]+/(\d+)$`)
	slugRe      = regexp.MustCompile(`/business-listing/([^/]+)/\d+`)
	millionRe   = regexp.MustCompile(`\$\s*(\d+\.?\d*)\s*(million|m\b)`)
	standardRe  = regexp.MustCompile(`\$\s*([\d,]+)`)
	postedRe    = regexp.MustCompile(`(?i)(\d+)\s+(day|days|hour|hours|week|weeks|month|months)\s+ago`)
	locSuffixRe = regexp.MustCompile(`\s+in\s+[^|]+$`)

	loopaRe = regexp.MustCompile(`(?s)var loopaData = ({.+?});`)
	heapRe  = regexp.MustCompile(`(?s)var heapListingData = ({.+?});`)
	dmpRe   = regexp.MustCompile(`(?s)var seekDmpData = ({.+?});`)
)

// summaryInfo holds the fields recoverable from one search-result card.
type summaryInfo struct {
	ID          string
	Title       string
	Price       int
	Location    string
	Industry    string
	URL         string
	BrokerName  string
	ListingType string
}

// detailInfo holds what a detail page yields beyond the summary.
type detailInfo struct {
	Title          string
	Description    string
	PostedRelative string
	PostedDate     *time.Time
	Structured     map[string]any
}

// parseSummary extracts the basic listing info from a single search-result
// fragment. Returns nil when the fragment lacks a recoverable identifier;
// an identifier is recoverable only via a link whose path ends in a
// numeric segment.
func parseSummary(sel *goquery.Selection) *summaryInfo {
	link := sel.Find("h2 a[href]").First()
	if link.Length() == 0 {
		return nil
	}

	href, _ := link.Attr("href")
	m := listingIDRe.FindStringSubmatch(href)
	if m == nil {
		return nil
	}

	detailURL := href
	if !strings.HasPrefix(href, "http") {
		detailURL = resolveURL(baseURL, href)
	}

	title := strings.TrimSpace(link.Text())
	if title == "" {
		title, _ = sel.Attr("aria-label")
		if title == "" {
			title = "Unknown Business"
		}
	}
	title = strings.TrimSpace(strings.SplitN(title, "|", 2)[0])

	info := &summaryInfo{
		ID:    "seek_" + m[1],
		Title: title,
		Price: parsePrice(sel.Text()),
		URL:   detailURL,
	}

	if loc := sel.Find(`[data-testid='search-result-item-location-breadcrumbs']`).First(); loc.Length() > 0 {
		info.Location = strings.TrimSpace(loc.Text())
	}
	if ind := sel.Find(`[data-testid='search-result-item-industry-breadcrumbs']`).First(); ind.Length() > 0 {
		info.Industry = strings.ReplaceAll(strings.TrimSpace(ind.Text()), ">", " > ")
		info.Industry = normalizeSpace(info.Industry)
	}
	if broker := sel.Find(`[data-testid='serp-listing-business-name']`).First(); broker.Length() > 0 {
		info.BrokerName = strings.TrimSpace(broker.Text())
	}
	if lt := sel.Find(`[data-testid='serp-listing-item-type']`).First(); lt.Length() > 0 {
		info.ListingType = strings.TrimSpace(lt.Text())
	}

	return info
}

// parsePrice recognizes "$2 million" / "$1.5m" and "$475,000" forms.
// Anything else yields 0 (absent).
func parsePrice(text string) int {
	if text == "" {
		return 0
	}

	if m := millionRe.FindStringSubmatch(strings.ToLower(text)); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return int(v * 1_000_000)
		}
	}

	if m := standardRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			return v
		}
	}

	return 0
}

// extractDetailTitle resolves the business title from a detail page:
// page heading first, then the title tag with any trailing "in <location>"
// suffix stripped.
func extractDetailTitle(doc *goquery.Document) string {
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		title := strings.TrimSpace(strings.SplitN(strings.TrimSpace(h1.Text()), "|", 2)[0])
		if len(title) > 3 {
			return title
		}
	}

	if tt := doc.Find("title").First(); tt.Length() > 0 {
		title := strings.TrimSpace(strings.SplitN(strings.TrimSpace(tt.Text()), "|", 2)[0])
		title = strings.TrimSpace(locSuffixRe.ReplaceAllString(title, ""))
		if len(title) > 3 {
			return title
		}
	}

	return ""
}

// stateCodes are short location tokens filtered out of URL-slug titles.
var stateCodes = map[string]struct{}{
	"in": {}, "qld": {}, "nsw": {}, "vic": {}, "wa": {}, "sa": {}, "act": {}, "nt": {},
}

// titleFromURL rebuilds a readable title from the URL slug, used as the
// last-resort fallback when a detail page stays blocked.
func titleFromURL(detailURL string) string {
	m := slugRe.FindStringSubmatch(detailURL)
	if m == nil {
		return ""
	}

	words := strings.Split(m[1], "-")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, code := stateCodes[strings.ToLower(w)]; code && len(w) <= 3 {
			continue
		}
		out = append(out, capitalize(w))
	}
	return strings.Join(out, " ")
}

// extractPostedDate finds a "<N> <unit> ago" phrase anywhere in the page
// text and computes the posted date as now minus that offset (months
// approximated as 30 days). Unmatched text yields an absent date.
func extractPostedDate(pageText string, now time.Time) (string, *time.Time) {
	m := postedRe.FindStringSubmatch(pageText)
	if m == nil {
		return "", nil
	}

	relative := strings.ToLower(m[0])
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", nil
	}

	var delta time.Duration
	switch strings.TrimSuffix(strings.ToLower(m[2]), "s") {
	case "hour":
		delta = time.Duration(n) * time.Hour
	case "day":
		delta = time.Duration(n) * 24 * time.Hour
	case "week":
		delta = time.Duration(n) * 7 * 24 * time.Hour
	case "month":
		delta = time.Duration(n) * 30 * 24 * time.Hour
	default:
		delta = time.Duration(n) * 24 * time.Hour
	}

	posted := now.UTC().Add(-delta)
	posted = time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC)
	return relative, &posted
}

// descriptionSelectors are tried in order after the "About the Business"
// section.
var descriptionSelectors = []string{
	`[data-testid='listing-description']`,
	`[data-testid='description']`,
	".listing-description",
	"#listing-description",
	"[class*=description]",
	"main [class*=content]",
	"article",
	"[role=main]",
	"#sbus-ad-detail-cont",
}

var templatePhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)All communication is now over to you and the advertiser\. Why not make another enquiry to compare it with a similar business\?`),
	regexp.MustCompile(`(?i)Thanks for confirming\. You'll be one of the first to know when a new business matches your preferences\.`),
	regexp.MustCompile(`(?i)NOW UNDER OFFER`),
}

var boilerplateMarkers = []string{
	"all communication is now over to you",
	"thanks for confirming",
	"you'll be one of the first to know",
	"why not make another enquiry",
	"sign in", "register", "menu", "cookie", "privacy",
}

// extractDescription resolves the business description: the "About the
// Business" section first, then a ranked selector list (accepting only
// text within [100, 5000) characters), then up to the first three
// substantial non-boilerplate paragraphs.
func extractDescription(doc *goquery.Document) string {
	var about string
	doc.Find("h4").EachWithBreak(func(_ int, h4 *goquery.Selection) bool {
		if !strings.Contains(h4.Text(), "About the Business") {
			return true
		}
		if item := h4.Closest("div.infoItem"); item.Length() > 0 {
			content := normalizeSpace(item.Text())
			content = strings.TrimSpace(strings.Replace(content, "About the Business", "", 1))
			if len(content) > 100 {
				about = content
				return false
			}
		}
		return true
	})
	if about != "" {
		return about
	}

	for _, selector := range descriptionSelectors {
		elem := doc.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		text := cleanDescription(normalizeSpace(elem.Text()))
		if len(text) > 100 && len(text) < 5000 {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) <= 100 {
			return
		}
		lower := strings.ToLower(text)
		for _, marker := range boilerplateMarkers {
			if strings.Contains(lower, marker) {
				return
			}
		}
		paragraphs = append(paragraphs, text)
	})

	if len(paragraphs) > 3 {
		paragraphs = paragraphs[:3]
	}
	return strings.Join(paragraphs, " ")
}

// cleanDescription strips known template/alert text.
func cleanDescription(text string) string {
	for _, re := range templatePhrases {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(normalizeSpace(text))
}

// extractStructuredData pulls the JSON blobs Seek embeds as JavaScript
// variables. Unparsable blobs are dropped.
func extractStructuredData(html string) map[string]any {
	structured := make(map[string]any)

	for key, re := range map[string]*regexp.Regexp{
		"loopa": loopaRe,
		"heap":  heapRe,
		"dmp":   dmpRe,
	} {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		jsonStr := strings.ReplaceAll(m[1], "&amp;", "&")
		jsonStr = strings.ReplaceAll(jsonStr, `\u0026`, "&")

		var blob map[string]any
		if err := json.Unmarshal([]byte(jsonStr), &blob); err == nil {
			structured[key] = blob
		}
	}

	return structured
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
