package browser

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/mealmajor/cartsync/engine"
	"github.com/mealmajor/cartsync/models"
)

// Fetch renders req.URL in a pooled tab and returns the resulting DOM.
// It has the engine.RodFetchFunc signature.
//
// Stealth, cookies and request blocking are installed before navigation;
// they only apply to documents loaded after them.
func (b *Browser) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	// ── 2. Acquire page from pool ─────────────────────────────────────
	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	// ── 3. Return the page blank so the cart DOM is released ─────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			b.logger.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	// ── 4. Stealth, cookies, request blocking ─────────────────────────
	if req.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			b.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	setCookies(page, req.URL, req.Cookies)
	if router := blockRequests(page); router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 5. Navigate and wait for the cart to settle ───────────────────
	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to cart page failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		b.logger.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	// ── 6. Extract ────────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalString(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      evalString(p, `() => document.title`),
		StatusCode: navigationStatus(p),
		FinalURL:   finalURL,
		EngineName: "rod",
	}, nil
}

// setCookies installs cookies for the target host. Cookies without a
// domain get the request host; without a path, "/".
func setCookies(page *rod.Page, target string, cookies []http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	for _, c := range cookieParams(target, cookies) {
		_, _ = c.Call(page)
	}
}

func cookieParams(target string, cookies []http.Cookie) []proto.NetworkSetCookie {
	host := ""
	if u, err := url.Parse(target); err == nil {
		host = u.Hostname()
	}
	out := make([]proto.NetworkSetCookie, 0, len(cookies))
	for _, c := range cookies {
		domain, path := c.Domain, c.Path
		if domain == "" {
			domain = host
		}
		if path == "" {
			path = "/"
		}
		out = append(out, proto.NetworkSetCookie{Name: c.Name, Value: c.Value, Domain: domain, Path: path})
	}
	return out
}

// navigationStatus reads the document's HTTP status from the Navigation
// Timing API. It returns 0 when unavailable.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func evalString(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeError maps rod failures to typed errors for the API layer.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
