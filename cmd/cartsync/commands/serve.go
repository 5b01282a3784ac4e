package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mealmajor/cartsync/api"
	"github.com/mealmajor/cartsync/backend"
	"github.com/mealmajor/cartsync/browser"
	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/config"
	"github.com/mealmajor/cartsync/engine"
	"github.com/mealmajor/cartsync/metrics"
	"github.com/mealmajor/cartsync/snapshot"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the scrape API and the /metro/sync backend stub.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()
	logger.Info("cartsync starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"browser", cfg.Browser.Enabled,
		"sync", cfg.Sync.Enabled,
	)

	// ── 1. Metrics ──────────────────────────────────────────────────
	m := metrics.New(prometheus.NewRegistry())

	// ── 2. Cart pipeline ────────────────────────────────────────────
	sc, err := cart.NewScraper(cart.Options{
		CartSegment:       cfg.Scraper.CartSegment,
		ContainerSelector: cfg.Scraper.ContainerSelector,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("initialise scraper: %w", err)
	}

	// ── 3. Browser (optional) ───────────────────────────────────────
	var br *browser.Browser
	if cfg.Browser.Enabled {
		br, err = browser.New(cfg.Browser, logger)
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		defer br.Close()
	}

	// ── 4. Fetch engines ────────────────────────────────────────────
	dispatcher, memory, err := newDispatcher(cfg, br, m, logger)
	if err != nil {
		return err
	}
	if memory != nil {
		defer memory.Stop()
	}

	// ── 5. Backend client + snapshots ───────────────────────────────
	store := snapshot.New(cfg.Snapshot.MaxEntries, cfg.Snapshot.TTL)
	defer store.Close()

	deps := api.Deps{
		Config:    cfg,
		Scraper:   sc,
		Snapshots: store,
		Metrics:   m,
		Logger:    logger,
		StartTime: time.Now(),
	}
	if dispatcher != nil {
		deps.Fetcher = dispatcher
	}
	if br != nil {
		deps.Pool = br
	}
	if cfg.Sync.Enabled {
		deps.Forwarder = newBackendClient(cfg.Sync, m, logger)
	}

	// ── 6. HTTP server ──────────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced shutdown", "error", err)
	} else {
		logger.Info("HTTP server drained gracefully")
	}

	logger.Info("cartsync stopped")
	return nil
}

// newDispatcher assembles the engine tiers that are enabled. It returns a
// nil dispatcher when no engine is available; scrapes then need posted HTML.
func newDispatcher(cfg *config.Config, br *browser.Browser, m *metrics.Metrics, logger *slog.Logger) (*engine.Dispatcher, *engine.DomainMemory, error) {
	tierDelay := func(i int) time.Duration {
		if i < len(cfg.Engine.EscalationDelays) {
			return cfg.Engine.EscalationDelays[i]
		}
		return 0
	}

	var engines []engine.Engine
	var delays []time.Duration

	if cfg.Engine.EnableHTTP {
		httpEngine, err := engine.NewHTTPEngine(cfg.Scraper.ContainerSelector)
		if err != nil {
			return nil, nil, err
		}
		httpEngine.Timeout = cfg.Engine.HTTPTimeout
		engines = append(engines, httpEngine)
		delays = append(delays, tierDelay(0))
	}
	if br != nil {
		engines = append(engines,
			engine.NewRodEngine(br.Fetch, false),
			engine.NewRodEngine(br.Fetch, true),
		)
		delays = append(delays, tierDelay(1), tierDelay(2))
	}
	if len(engines) == 0 {
		logger.Warn("no fetch engine enabled, scrapes require posted html")
		return nil, nil, nil
	}

	memory := engine.NewDomainMemory(cfg.Engine.MemoryTTL)
	d := engine.NewDispatcher(engines, delays, memory, m, logger)
	logger.Info("engine dispatcher enabled", "engines", d.Engines(), "delays", delays)
	return d, memory, nil
}

func newBackendClient(cfg config.SyncConfig, m *metrics.Metrics, logger *slog.Logger) *backend.Client {
	return backend.New(backend.Options{
		BaseURL:       cfg.BackendURL,
		Token:         cfg.Token,
		SigningSecret: cfg.SigningSecret,
		Timeout:       cfg.Timeout,
		Metrics:       m,
		Logger:        logger,
	})
}
