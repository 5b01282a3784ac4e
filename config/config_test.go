package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Scraper.CartSegment != "/my-cart" {
		t.Errorf("Scraper.CartSegment = %q, want /my-cart", cfg.Scraper.CartSegment)
	}
	if cfg.Scraper.ContainerSelector != ".basket-product-tiles" {
		t.Errorf("Scraper.ContainerSelector = %q", cfg.Scraper.ContainerSelector)
	}
	if cfg.Sync.BackendURL != "http://localhost:3000" {
		t.Errorf("Sync.BackendURL = %q", cfg.Sync.BackendURL)
	}
	if cfg.Auth.Enabled {
		t.Error("Auth.Enabled should default to false")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CARTSYNC_PORT", "9090")
	t.Setenv("CARTSYNC_CART_SEGMENT", "/basket")
	t.Setenv("CARTSYNC_SYNC_TIMEOUT", "3s")
	t.Setenv("CARTSYNC_API_KEYS", "a, b,,c")
	t.Setenv("CARTSYNC_HEADLESS", "false")
	t.Setenv("CARTSYNC_ESCALATION_DELAYS", "0s, 1s,bogus")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scraper.CartSegment != "/basket" {
		t.Errorf("Scraper.CartSegment = %q, want /basket", cfg.Scraper.CartSegment)
	}
	if cfg.Sync.Timeout != 3*time.Second {
		t.Errorf("Sync.Timeout = %v, want 3s", cfg.Sync.Timeout)
	}
	if len(cfg.Auth.APIKeys) != 3 {
		t.Errorf("Auth.APIKeys = %v, want 3 keys", cfg.Auth.APIKeys)
	}
	if cfg.Browser.Headless {
		t.Error("Browser.Headless should be false")
	}
	if len(cfg.Engine.EscalationDelays) != 2 || cfg.Engine.EscalationDelays[1] != time.Second {
		t.Errorf("Engine.EscalationDelays = %v, want [0s 1s]", cfg.Engine.EscalationDelays)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CARTSYNC_PORT", "not-a-number")
	t.Setenv("CARTSYNC_RATE_RPS", "fast")
	t.Setenv("CARTSYNC_SNAPSHOT_TTL", "soon")

	cfg := Load()

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want fallback 3000", cfg.Server.Port)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.0 {
		t.Errorf("RateLimit.RequestsPerSecond = %v, want 2", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Snapshot.TTL != time.Hour {
		t.Errorf("Snapshot.TTL = %v, want 1h", cfg.Snapshot.TTL)
	}
}
