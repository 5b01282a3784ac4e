package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/config"
	"github.com/mealmajor/cartsync/engine"
	"github.com/mealmajor/cartsync/metrics"
	"github.com/mealmajor/cartsync/models"
	"github.com/mealmajor/cartsync/snapshot"
)

// ScrapeDeps are the collaborators of the scrape handler. Fetcher and
// Forwarder may be nil.
type ScrapeDeps struct {
	Scraper   *cart.Scraper
	Fetcher   Fetcher
	Forwarder Forwarder
	Snapshots *snapshot.Store
	Metrics   *metrics.Metrics
	Config    config.ScraperConfig
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Page gate on the request URL.
//  3. Obtain the DOM: posted HTML, or the engine dispatcher (records fetch_ms).
//  4. Run the cart pipeline (records scrape_ms).
//  5. Store the snapshot, queue the backend forward, respond.
func Scrape(d ScrapeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		req.Defaults()

		// ── 2. Gate ─────────────────────────────────────────────────
		gate := d.Scraper.Gate()
		if !gate.IsCartURL(req.URL) {
			d.Metrics.RecordGateRejection()
			respondError(c, models.NewScrapeError(models.ErrCodeNotCartPage,
				fmt.Sprintf("%s is not a cart page (path must contain %q)", req.URL, gate.Segment()), nil),
				models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}

		// ── 3. Obtain DOM ───────────────────────────────────────────
		fetchStart := time.Now()
		page, pageURL, engineUsed, err := d.obtain(c.Request.Context(), &req)
		fetchMs := time.Since(fetchStart).Milliseconds()
		if err != nil {
			d.Metrics.RecordScrape("", metrics.OutcomeError, 0)
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
				FetchMs: fetchMs,
			})
			return
		}
		if !gate.IsCartURL(pageURL) {
			d.Metrics.RecordGateRejection()
			respondError(c, models.NewScrapeError(models.ErrCodeNotCartPage,
				fmt.Sprintf("redirected away from the cart to %s", pageURL), nil),
				models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds(), FetchMs: fetchMs})
			return
		}

		// ── 4. Scrape ───────────────────────────────────────────────
		scrapeStart := time.Now()
		res, err := d.Scraper.ScrapeHTML(c.Request.Context(), strings.NewReader(page), pageURL)
		scrapeMs := time.Since(scrapeStart).Milliseconds()
		if err != nil {
			d.Metrics.RecordScrape("", metrics.OutcomeError, 0)
			respondError(c, err, models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				FetchMs:  fetchMs,
				ScrapeMs: scrapeMs,
			})
			return
		}

		outcome := metrics.OutcomeSuccess
		if len(res.Items) == 0 {
			outcome = metrics.OutcomeEmpty
		}
		d.Metrics.RecordScrape(res.Strategy, outcome, len(res.Items))

		// ── 5. Snapshot + forward ───────────────────────────────────
		if d.Snapshots != nil {
			d.Snapshots.Put(identity(c), res)
		}

		syncStatus := models.SyncSkipped
		if req.Sync {
			if d.Forwarder == nil {
				syncStatus = models.SyncDisabled
			} else {
				d.Forwarder.DeliverAsync(res.Items, nil)
				syncStatus = models.SyncQueued
			}
		}

		c.JSON(http.StatusOK, models.ScrapeResponse{
			Success:    true,
			ID:         res.ID,
			Strategy:   res.Strategy,
			Count:      len(res.Items),
			Items:      res.Items,
			Warnings:   res.Warnings,
			Sync:       syncStatus,
			EngineUsed: engineUsed,
			Timing: models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				FetchMs:  fetchMs,
				ScrapeMs: scrapeMs,
			},
		})
	}
}

// obtain returns the page HTML, the URL it was rendered at and the engine
// that produced it (empty for posted HTML).
func (d ScrapeDeps) obtain(ctx context.Context, req *models.ScrapeRequest) (string, string, string, error) {
	if req.HTML != "" {
		if d.Config.MaxHTMLBytes > 0 && len(req.HTML) > d.Config.MaxHTMLBytes {
			return "", "", "", models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("html exceeds %d bytes", d.Config.MaxHTMLBytes), nil)
		}
		return req.HTML, req.URL, "", nil
	}

	if d.Fetcher == nil {
		return "", "", "", models.NewScrapeError(models.ErrCodeInvalidInput,
			"html is required: no fetch engine is configured", nil)
	}

	timeout := time.Duration(req.Timeout) * time.Second
	if d.Config.MaxTimeout > 0 && timeout > d.Config.MaxTimeout {
		timeout = d.Config.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := d.Fetcher.Dispatch(ctx, &engine.FetchRequest{
		URL:     req.URL,
		Cookies: toHTTPCookies(req.Cookies),
		Timeout: timeout,
		Stealth: req.Stealth,
	})
	if err != nil {
		return "", "", "", err
	}

	finalURL := res.FinalURL
	if finalURL == "" {
		finalURL = req.URL
	}
	return res.HTML, finalURL, res.EngineName, nil
}

func toHTTPCookies(in []models.Cookie) []http.Cookie {
	out := make([]http.Cookie, len(in))
	for i, c := range in {
		out[i] = http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}
	}
	return out
}
