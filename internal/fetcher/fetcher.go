// Package fetcher scrapes expedition announcements from rdaward.ru.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rda_bot/internal/model"
)

// DefaultURL is the page that carries the announcement list.
const DefaultURL = "https://rdaward.ru"

// ErrFetch wraps every failure to obtain or parse the announcement page.
var ErrFetch = errors.New("fetch announcements")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	fragmentRe = regexp.MustCompile(`(?s)var\s+div_contents\s*=\s*'(.+?)';`)
	spaceRe    = regexp.MustCompile(`\s+`)
	datesRe    = regexp.MustCompile(`с\s*(\d{2}\.\d{2}\.\d{4}).*?по\s*(\d{2}\.\d{2}\.\d{4})`)
	sourceRe   = regexp.MustCompile(`(?i)источник:\s*([^,•]+)`)
	addedRe    = regexp.MustCompile(`добавлено:\s*(\d{2}\.\d{2}\.\d{4})`)
	rdaRe      = regexp.MustCompile(`[A-Z]{2}-\d{2}`)
)

const missing = "—"

// Fetcher downloads and parses the announcement page.
type Fetcher struct {
	client  HTTPClient
	url     string
	timeout time.Duration
}

// New creates a Fetcher for the page at url. An empty url means DefaultURL.
func New(client HTTPClient, url string) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	return &Fetcher{
		client:  client,
		url:     url,
		timeout: 20 * time.Second,
	}
}

// Fetch returns the announcements currently published, in page order.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "RDANotifyBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	records, err := Parse(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return records, nil
}

// Parse extracts announcements from the page. The list is not part of the
// page markup: a script assigns it as an escaped HTML string to div_contents.
func Parse(page io.Reader) ([]model.Announcement, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var raw string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := fragmentRe.FindStringSubmatch(s.Text()); m != nil {
			raw = m[1]
			return false
		}
		return true
	})
	if raw == "" {
		return nil, errors.New("announcement fragment not found")
	}
	fragment := strings.ReplaceAll(html.UnescapeString(raw), `\'`, `'`)

	frag, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	var out []model.Announcement
	frag.Find(`div[style*="border:1px solid"]`).Each(func(_ int, card *goquery.Selection) {
		cols := card.ChildrenFiltered("div")
		if cols.Length() < 2 {
			return
		}
		out = append(out, parseCard(cols.Eq(0), cols.Eq(1)))
	})
	return out, nil
}

func parseCard(left, right *goquery.Selection) model.Announcement {
	a := model.Announcement{
		Callsign: cleanSpace(left.Find("b").First().Text()),
		Declared: cleanSpace(left.Find("span").First().Text()),
		DateFrom: missing,
		DateTo:   missing,
		Source:   missing,
		Added:    missing,
	}

	text := cleanSpace(spacedText(right))
	if m := datesRe.FindStringSubmatch(text); m != nil {
		a.DateFrom, a.DateTo = m[1], m[2]
	}
	if m := sourceRe.FindStringSubmatch(text); m != nil {
		a.Source = cleanSpace(m[1])
	}
	if m := addedRe.FindStringSubmatch(text); m != nil {
		a.Added = m[1]
	}

	seen := make(map[string]bool)
	for _, code := range rdaRe.FindAllString(text, -1) {
		if !seen[code] {
			seen[code] = true
			a.RDAs = append(a.RDAs, code)
		}
	}
	return a
}

// spacedText joins the text of every descendant with single spaces, so
// adjacent elements do not glue their words together.
func spacedText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				parts = append(parts, t)
			}
			return
		}
		if t := spacedText(c); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func cleanSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
