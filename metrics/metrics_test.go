package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_HTTPEndpoint(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordScrape("attribute", OutcomeSuccess, 4)
	m.RecordScrape("", OutcomeEmpty, 0)
	m.RecordSync(OutcomeError)
	m.RecordGateRejection()
	m.RecordFetch("http", 150*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `cartsync_scrapes_total{outcome="success",strategy="attribute"} 1`)
	assert.Contains(t, text, `cartsync_scrapes_total{outcome="empty",strategy="none"} 1`)
	assert.Contains(t, text, `cartsync_sync_deliveries_total{outcome="error"} 1`)
	assert.Contains(t, text, "cartsync_gate_rejections_total 1")
	assert.Contains(t, text, "cartsync_items_scraped_count 2")
	assert.Contains(t, text, `cartsync_fetch_duration_seconds_count{engine="http"} 1`)
	assert.Contains(t, text, "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordScrape("image", OutcomeSuccess, 1)
	m.RecordSync(OutcomeSuccess)
	m.RecordGateRejection()
	m.RecordFetch("rod", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
