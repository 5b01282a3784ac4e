package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/config"
	"github.com/mealmajor/cartsync/metrics"
	"github.com/mealmajor/cartsync/snapshot"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.RateLimit.RequestsPerSecond = 100
	cfg.RateLimit.Burst = 100
	if mutate != nil {
		mutate(cfg)
	}

	sc, err := cart.NewScraper(cart.Options{
		ContainerSelector: cfg.Scraper.ContainerSelector,
		CartSegment:       cfg.Scraper.CartSegment,
		Logger:            slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	store := snapshot.New(10, time.Hour)
	t.Cleanup(store.Close)

	return NewRouter(Deps{
		Config:    cfg,
		Scraper:   sc,
		Snapshots: store,
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Logger:    slog.New(slog.DiscardHandler),
		StartTime: time.Now(),
	})
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.APIKeys = []string{"k1"}
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/health", "", nil).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/metro/sync", `{"items":[]}`, nil).Code)

	w := serve(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cartsync_scrapes_total")
}

func TestRouter_ProtectedRoutesRequireKey(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.APIKeys = []string{"k1"}
	})

	body := `{"url":"https://www.metro.ca/en/online-grocery/my-cart","html":"<div class=\"basket-product-tiles\"><div data-product-name=\"Bananas\" data-qty=\"6\"></div></div>"}`

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/scrape", body, nil).Code)

	w := serve(r, http.MethodPost, "/api/v1/scrape", body, map[string]string{"X-API-Key": "k1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"Bananas"`)

	w = serve(r, http.MethodGet, "/api/v1/scrape/last", "", map[string]string{"Authorization": "Bearer k1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Bananas"`)
}

func TestRouter_ExtensionPreflight(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, http.MethodOptions, "/metro/sync", "", map[string]string{
		"Origin":                        "chrome-extension://abcdef",
		"Access-Control-Request-Method": "POST",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "chrome-extension://abcdef", w.Header().Get("Access-Control-Allow-Origin"))
}
