package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/mealmajor/cartsync/models"
)

const (
	// BindingName is the page-global function the sync control calls.
	BindingName = "__cartsyncScrape"

	// ButtonID is the DOM id of the injected sync control.
	ButtonID = "metro-fridge-sync-btn"
)

//go:embed control.js
var controlTemplate string

// WatchRequest describes the page to watch.
type WatchRequest struct {
	URL     string
	Segment string // cart path segment; the control only appears on matching paths
	Cookies []http.Cookie
	Stealth bool
}

// ScrapeFunc handles one click on the sync control. pageURL is the
// document's location and html its serialized DOM at click time. The
// returned summary is shown to the user.
type ScrapeFunc func(ctx context.Context, pageURL, html string) (summary string, err error)

// ClickResult is what the binding returns to the page.
type ClickResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Watch opens req.URL in a dedicated tab, adds the sync control to cart
// pages and serves clicks with scrape until ctx is done. The tab is not
// taken from the pool.
func (b *Browser) Watch(ctx context.Context, req WatchRequest, scrape ScrapeFunc) error {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open watch page", err)
	}
	defer func() { _ = page.Close() }()

	p := page.Context(ctx)

	if req.Stealth {
		if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
			b.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	setCookies(page, req.URL, req.Cookies)

	stop, err := p.Expose(BindingName, func(payload gson.JSON) (interface{}, error) {
		href := payload.Get("href").Str()
		html, err := p.HTML()
		if err != nil {
			return clickFailure(err), nil
		}
		summary, err := scrape(ctx, href, html)
		if err != nil {
			return clickFailure(err), nil
		}
		return ClickResult{OK: true, Message: summary}, nil
	})
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to expose scrape binding", err)
	}
	defer func() { _ = stop() }()

	script, err := controlScript(req.Segment)
	if err != nil {
		return err
	}
	if _, err := p.EvalOnNewDocument(script); err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to install sync control", err)
	}

	if err := p.Navigate(req.URL); err != nil {
		return categorizeError(err, "navigation to cart page failed")
	}
	if err := p.WaitLoad(); err != nil {
		b.logger.Debug("watch page load wait failed", "error", err)
	}
	// The new-document script covers later navigations; this covers the
	// document that is already loaded.
	if _, err := p.Eval(`() => {` + script + `}`); err != nil {
		b.logger.Warn("sync control injection failed", "error", err)
	}

	b.logger.Info("watching cart page", "url", req.URL, "segment", req.Segment)
	<-ctx.Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func clickFailure(err error) ClickResult {
	msg := err.Error()
	var se *models.ScrapeError
	if errors.As(err, &se) {
		msg = se.Message
	}
	msg = strings.TrimPrefix(msg, "error scraping cart: ")
	return ClickResult{OK: false, Message: "Error scraping cart: " + msg}
}

// controlScript fills the control template with JSON-quoted arguments.
func controlScript(segment string) (string, error) {
	args := map[string]string{
		"__BINDING__":   BindingName,
		"__SEGMENT__":   strings.ToLower(segment),
		"__BUTTON_ID__": ButtonID,
	}
	script := controlTemplate
	for placeholder, v := range args {
		quoted, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("browser: quote %s: %w", placeholder, err)
		}
		script = strings.Replace(script, placeholder, string(quoted), 1)
	}
	return script, nil
}
