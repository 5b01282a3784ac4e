// Package cart extracts the purchased items from a rendered grocery cart
// page. The pipeline is gate, locate, extract, merge; every stage is a
// heuristic tuned for one store's markup and degrades to fewer items
// rather than failing.
package cart

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"

	"github.com/mealmajor/cartsync/models"
)

// DefaultContainerSelector scopes the locators to the cart listing.
const DefaultContainerSelector = ".basket-product-tiles"

// Options configures a Scraper.
type Options struct {
	// CartSegment is passed to NewGate.
	CartSegment string

	// ContainerSelector scopes the locators. When no element matches, the
	// scrape returns an empty result with a warning. An empty selector
	// scans the whole document.
	ContainerSelector string

	// Locators overrides DefaultLocators.
	Locators Cascade

	Logger *slog.Logger
}

// Result is the outcome of one scrape.
type Result struct {
	ID         string               `json:"id"`
	SourceURL  string               `json:"source_url,omitempty"`
	Strategy   string               `json:"strategy,omitempty"`
	Containers int                  `json:"containers"`
	Items      []models.ScrapedItem `json:"items"`
	Warnings   []string             `json:"warnings,omitempty"`
	ScrapedAt  time.Time            `json:"scraped_at"`
}

// Scraper runs the cart pipeline over parsed documents. It holds no
// per-scrape state and is safe for concurrent use.
type Scraper struct {
	gate      Gate
	container cascadia.Selector
	selector  string
	locators  Cascade
	extractor Extractor
	logger    *slog.Logger
}

// NewScraper validates opts and builds a Scraper.
func NewScraper(opts Options) (*Scraper, error) {
	s := &Scraper{
		gate:     NewGate(opts.CartSegment),
		selector: strings.TrimSpace(opts.ContainerSelector),
		locators: opts.Locators,
		logger:   opts.Logger,
	}
	if s.selector != "" {
		sel, err := cascadia.Compile(s.selector)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("invalid container selector %q", s.selector), err)
		}
		s.container = sel
	}
	if len(s.locators) == 0 {
		s.locators = DefaultLocators()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Gate returns the page gate the scraper was built with.
func (s *Scraper) Gate() Gate { return s.gate }

// ScrapeHTML parses r and scrapes the resulting document.
func (s *Scraper) ScrapeHTML(ctx context.Context, r io.Reader, sourceURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "failed to parse HTML", err)
	}
	return s.Scrape(ctx, doc, sourceURL)
}

// Scrape runs locate, extract and merge over doc. A document with no cart
// lines produces an empty result, not an error. A panic anywhere in the
// pipeline aborts the scrape with ErrCodeAborted.
func (s *Scraper) Scrape(ctx context.Context, doc *goquery.Document, sourceURL string) (res *Result, err error) {
	log := s.logger.With("source_url", sourceURL)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "scrape aborted", "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = models.NewScrapeError(models.ErrCodeAborted,
				fmt.Sprintf("error scraping cart: %v", r), nil)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "scrape cancelled", err)
	}

	rep := &report{ctx: ctx, logger: log}
	res = &Result{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Items:     []models.ScrapedItem{},
		ScrapedAt: time.Now().UTC(),
	}

	root := doc.Selection
	if s.container != nil {
		root = doc.FindMatcher(s.container)
		if root.Length() == 0 {
			rep.warnf("cart container %q not found", s.selector)
			res.Warnings = rep.warnings
			return res, nil
		}
	}

	strategy, nodes := s.locators.Locate(root)
	res.Strategy = strategy
	res.Containers = len(nodes)
	if len(nodes) == 0 {
		rep.warnf("no cart items located")
		res.Warnings = rep.warnings
		return res, nil
	}

	items := make([]models.ScrapedItem, 0, len(nodes))
	for _, n := range nodes {
		if it := s.extractor.Extract(doc.FindNodes(n), rep); it != nil {
			items = append(items, *it)
		}
	}

	res.Items = Merge(items)
	res.Warnings = rep.warnings

	log.InfoContext(ctx, "cart scraped",
		"strategy", strategy,
		"containers", len(nodes),
		"items", len(res.Items),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// report collects non-fatal warnings for one scrape and mirrors them to
// the log.
type report struct {
	ctx      context.Context
	logger   *slog.Logger
	warnings []string
}

func (r *report) warn(msg string) {
	r.warnings = append(r.warnings, msg)
	r.logger.WarnContext(r.ctx, msg)
}

func (r *report) warnf(format string, args ...any) {
	r.warn(fmt.Sprintf(format, args...))
}
