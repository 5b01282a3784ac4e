// Package metrics exposes Prometheus collectors for scrapes, backend
// deliveries and page fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scrape and delivery outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Metrics records pipeline and delivery counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	scrapesTotal   *prometheus.CounterVec
	itemsScraped   prometheus.Histogram
	syncTotal      *prometheus.CounterVec
	gateRejections prometheus.Counter
	fetchDuration  *prometheus.HistogramVec

	handler http.Handler
}

// New creates the collectors under the "cartsync" namespace and registers
// them, plus the Go runtime and process collectors, on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{}

	m.scrapesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartsync",
		Name:      "scrapes_total",
		Help:      "Total cart scrapes by winning locator and outcome",
	}, []string{"strategy", "outcome"}) // outcome: success, empty, error

	m.itemsScraped = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cartsync",
		Name:      "items_scraped",
		Help:      "Number of merged items per scrape",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 40, 80},
	})

	m.syncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cartsync",
		Name:      "sync_deliveries_total",
		Help:      "Total deliveries of scraped items to the backend",
	}, []string{"outcome"})

	m.gateRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cartsync",
		Name:      "gate_rejections_total",
		Help:      "Total scrape requests refused because the page is not the cart",
	})

	m.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cartsync",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching cart pages by engine",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~50s
	}, []string{"engine"})

	reg.MustRegister(
		m.scrapesTotal,
		m.itemsScraped,
		m.syncTotal,
		m.gateRejections,
		m.fetchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// RecordScrape counts one scrape. An empty strategy is reported as "none".
func (m *Metrics) RecordScrape(strategy, outcome string, items int) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.scrapesTotal.WithLabelValues(strategy, outcome).Inc()
	if outcome != OutcomeError {
		m.itemsScraped.Observe(float64(items))
	}
}

// RecordSync counts one backend delivery attempt.
func (m *Metrics) RecordSync(outcome string) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(outcome).Inc()
}

// RecordGateRejection counts a request for a page that is not the cart.
func (m *Metrics) RecordGateRejection() {
	if m == nil {
		return
	}
	m.gateRejections.Inc()
}

// RecordFetch observes how long an engine took to produce a page.
func (m *Metrics) RecordFetch(engine string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(engine).Observe(d.Seconds())
}
