package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealmajor/cartsync/api/handler"
	"github.com/mealmajor/cartsync/api/middleware"
	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/config"
	"github.com/mealmajor/cartsync/metrics"
	"github.com/mealmajor/cartsync/snapshot"
)

// Deps bundles everything the router hands to its handlers. Fetcher,
// Forwarder and Pool may be nil.
type Deps struct {
	Config    *config.Config
	Scraper   *cart.Scraper
	Fetcher   handler.Fetcher
	Forwarder handler.Forwarder
	Pool      handler.PoolReporter
	Snapshots *snapshot.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestLogger → CORS
//	API:     Auth (if enabled) → RateLimit
//
// Health, metrics and the backend sync stub are outside auth.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Backend stub the extension and the sync client post to.
	r.POST("/metro/sync", handler.MetroSync(cfg.Sync.SigningSecret, logger))

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(d.Pool, d.StartTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(handler.ScrapeDeps{
		Scraper:   d.Scraper,
		Fetcher:   d.Fetcher,
		Forwarder: d.Forwarder,
		Snapshots: d.Snapshots,
		Metrics:   d.Metrics,
		Config:    cfg.Scraper,
	}))
	protected.GET("/scrape/last", handler.LastScrape(d.Snapshots))

	return r
}
