package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealmajor/cartsync/backend"
	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/config"
	"github.com/mealmajor/cartsync/engine"
	"github.com/mealmajor/cartsync/models"
	"github.com/mealmajor/cartsync/snapshot"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const cartURL = "https://www.metro.ca/en/online-grocery/my-cart"

const cartPage = `<html><body>
<div class="basket-product-tiles">
  <div class="tile" data-product-name="Natrel Milk 2% 2 L" data-qty="2">
    <div class="head__title">Natrel Milk 2% 2 L</div>
  </div>
  <div class="tile" data-product-name="Lean Ground Beef" data-qty="1">
    <div class="head__title">Lean Ground Beef</div>
  </div>
</div>
</body></html>`

type fakeFetcher struct {
	res *engine.FetchResult
	err error
	got *engine.FetchRequest
}

func (f *fakeFetcher) Dispatch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeForwarder struct {
	items []models.ScrapedItem
	calls int
}

func (f *fakeForwarder) DeliverAsync(items []models.ScrapedItem, _ func(*models.SyncResponse, error)) {
	f.calls++
	f.items = items
}

type fakePool struct{ stats models.PoolStats }

func (p fakePool) Stats() models.PoolStats { return p.stats }

func newDeps(t *testing.T) ScrapeDeps {
	t.Helper()
	sc, err := cart.NewScraper(cart.Options{
		ContainerSelector: cart.DefaultContainerSelector,
		Logger:            slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	store := snapshot.New(10, time.Hour)
	t.Cleanup(store.Close)

	return ScrapeDeps{
		Scraper:   sc,
		Snapshots: store,
		Config:    config.ScraperConfig{MaxTimeout: 120 * time.Second, MaxHTMLBytes: 1 << 20},
	}
}

func newScrapeRouter(d ScrapeDeps) *gin.Engine {
	r := gin.New()
	r.POST("/scrape", Scrape(d))
	r.GET("/scrape/last", LastScrape(d.Snapshots))
	return r
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeScrape(t *testing.T, w *httptest.ResponseRecorder) models.ScrapeResponse {
	t.Helper()
	var resp models.ScrapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestScrape_PostedHTML(t *testing.T) {
	d := newDeps(t)
	r := newScrapeRouter(d)

	w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL, HTML: cartPage})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeScrape(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, cart.StrategyAttribute, resp.Strategy)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "Natrel Milk 2% 2 L", resp.Items[0].Name)
	assert.Equal(t, 2, resp.Items[0].Quantity)
	assert.Equal(t, models.SyncSkipped, resp.Sync)
	assert.Empty(t, resp.EngineUsed)
	assert.NotEmpty(t, resp.ID)
}

func TestScrape_GateRejectsNonCartURL(t *testing.T) {
	r := newScrapeRouter(newDeps(t))

	w := postJSON(r, "/scrape", models.ScrapeRequest{URL: "https://www.metro.ca/en/flyer", HTML: cartPage})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeScrape(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrCodeNotCartPage, resp.Error.Code)
	assert.Empty(t, resp.Items)
}

func TestScrape_InvalidRequest(t *testing.T) {
	r := newScrapeRouter(newDeps(t))

	w := postJSON(r, "/scrape", map[string]any{"url": "not a url"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrCodeInvalidInput, decodeScrape(t, w).Error.Code)
}

func TestScrape_HTMLTooLarge(t *testing.T) {
	d := newDeps(t)
	d.Config.MaxHTMLBytes = 16
	r := newScrapeRouter(d)

	w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL, HTML: cartPage})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScrape_NoFetcherRequiresHTML(t *testing.T) {
	r := newScrapeRouter(newDeps(t))

	w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScrape_FetchedPage(t *testing.T) {
	d := newDeps(t)
	f := &fakeFetcher{res: &engine.FetchResult{HTML: cartPage, FinalURL: cartURL, EngineName: "rod"}}
	d.Fetcher = f
	r := newScrapeRouter(d)

	w := postJSON(r, "/scrape", models.ScrapeRequest{
		URL:     cartURL,
		Timeout: 10,
		Cookies: []models.Cookie{{Name: "session", Value: "abc", Domain: ".metro.ca"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeScrape(t, w)
	assert.Equal(t, "rod", resp.EngineUsed)
	assert.Equal(t, 2, resp.Count)

	require.NotNil(t, f.got)
	assert.Equal(t, 10*time.Second, f.got.Timeout)
	require.Len(t, f.got.Cookies, 1)
	assert.Equal(t, "session", f.got.Cookies[0].Name)
}

func TestScrape_RedirectedAwayFromCart(t *testing.T) {
	d := newDeps(t)
	d.Fetcher = &fakeFetcher{res: &engine.FetchResult{
		HTML:       "<html><body>Sign in</body></html>",
		FinalURL:   "https://www.metro.ca/en/login",
		EngineName: "http",
	}}
	r := newScrapeRouter(d)

	w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestScrape_FetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{"needs browser", engine.ErrNeedsBrowser, http.StatusBadGateway, models.ErrCodeNavigation},
		{"crash", models.NewScrapeError(models.ErrCodeBrowserCrash, "gone", nil), http.StatusServiceUnavailable, models.ErrCodeBrowserCrash},
		{"other", errors.New("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps(t)
			d.Fetcher = &fakeFetcher{err: tt.err}
			r := newScrapeRouter(d)

			w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeScrape(t, w).Error.Code)
		})
	}
}

func TestScrape_SyncStatus(t *testing.T) {
	t.Run("disabled without forwarder", func(t *testing.T) {
		r := newScrapeRouter(newDeps(t))
		w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL, HTML: cartPage, Sync: true})
		assert.Equal(t, models.SyncDisabled, decodeScrape(t, w).Sync)
	})

	t.Run("queued with forwarder", func(t *testing.T) {
		d := newDeps(t)
		fw := &fakeForwarder{}
		d.Forwarder = fw
		r := newScrapeRouter(d)

		w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL, HTML: cartPage, Sync: true})

		assert.Equal(t, models.SyncQueued, decodeScrape(t, w).Sync)
		assert.Equal(t, 1, fw.calls)
		assert.Len(t, fw.items, 2)
	})

	t.Run("empty cart is still forwarded", func(t *testing.T) {
		d := newDeps(t)
		fw := &fakeForwarder{}
		d.Forwarder = fw
		r := newScrapeRouter(d)

		w := postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL, HTML: "<html><body></body></html>", Sync: true})

		resp := decodeScrape(t, w)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, resp.Count)
		assert.NotEmpty(t, resp.Warnings)
		assert.Equal(t, 1, fw.calls)
	})
}

func TestLastScrape(t *testing.T) {
	d := newDeps(t)
	r := newScrapeRouter(d)

	req := httptest.NewRequest(http.MethodGet, "/scrape/last", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	scrapeResp := decodeScrape(t, postJSON(r, "/scrape", models.ScrapeRequest{URL: cartURL, HTML: cartPage}))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scrape/last", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var last cart.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &last))
	assert.Equal(t, scrapeResp.ID, last.ID)
	assert.Len(t, last.Items, 2)
	assert.Equal(t, cartURL, last.SourceURL)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pool       PoolReporter
		wantStatus string
	}{
		{"no browser", nil, "healthy"},
		{"idle pool", fakePool{models.PoolStats{MaxPages: 10, ActivePages: 2}}, "healthy"},
		{"busy pool", fakePool{models.PoolStats{MaxPages: 10, ActivePages: 9}}, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", Health(tt.pool, time.Now()))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, http.StatusOK, w.Code)
			var resp models.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, Version, resp.Version)
		})
	}
}

func postRaw(r http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/metro/sync", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMetroSync(t *testing.T) {
	r := gin.New()
	r.POST("/metro/sync", MetroSync("", slog.New(slog.DiscardHandler)))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
		wantSample int
	}{
		{"five items", `{"items":[{"name":"a"},{"name":"b"},{"name":"c"},{"name":"d"},{"name":"e"}]}`, http.StatusCreated, 5, 3},
		{"one item", `{"items":[{"name":"Milk","quantity":2}]}`, http.StatusCreated, 1, 1},
		{"items not an array", `{"items":"nope"}`, http.StatusCreated, 0, 0},
		{"no items key", `{}`, http.StatusCreated, 0, 0},
		{"top-level array", `[1,2,3]`, http.StatusCreated, 0, 0},
		{"empty body", ``, http.StatusCreated, 0, 0},
		{"invalid json", `{"items":[`, http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRaw(r, tt.body, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusCreated {
				return
			}

			var resp models.SyncResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.OK)
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Len(t, resp.ReceivedSample, tt.wantSample)
		})
	}
}

func TestMetroSync_SampleIsVerbatim(t *testing.T) {
	r := gin.New()
	r.POST("/metro/sync", MetroSync("", slog.New(slog.DiscardHandler)))

	w := postRaw(r, `{"items":[{"name":"Milk","extra":true}]}`, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"ok":true,"count":1,"receivedSample":[{"name":"Milk","extra":true}]}`, w.Body.String())
}

func TestMetroSync_Signature(t *testing.T) {
	const secret = "s3cret"
	r := gin.New()
	r.POST("/metro/sync", MetroSync(secret, slog.New(slog.DiscardHandler)))

	body := `{"items":[{"name":"Milk"}]}`

	w := postRaw(r, body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postRaw(r, body, map[string]string{backend.SignatureHeader: "sha256=deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postRaw(r, body, map[string]string{backend.SignatureHeader: "sha256=" + backend.Sign(secret, []byte(body))})
	assert.Equal(t, http.StatusCreated, w.Code)
}
