package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Engine    EngineConfig
	Sync      SyncConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Snapshot  SnapshotConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"

	// AllowedOrigins lists CORS origins; a trailing "*" matches a prefix.
	AllowedOrigins []string // default: chrome-extension://*, http://localhost:3000
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Enabled launches Chrome at startup. Without it only posted HTML
	// and the plain HTTP engine are available.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless. Watch mode
	// needs a visible window to be useful.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls the cart pipeline and page fetching.
type ScraperConfig struct {
	// CartSegment is the path fragment identifying the cart page.
	CartSegment string // default: "/my-cart"

	// ContainerSelector scopes the item locators to the cart.
	ContainerSelector string // default: ".basket-product-tiles"

	// DefaultTimeout is the per-request fetch timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// MaxHTMLBytes caps posted HTML documents.
	MaxHTMLBytes int // default: 10 MiB
}

// EngineConfig controls the fetch engine escalation.
type EngineConfig struct {
	// EnableHTTP tries a plain HTTP fetch before starting Chrome.
	EnableHTTP bool // default: true

	// EscalationDelays is the staged start delay for each engine tier
	// (http, rod, rod-stealth).
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 5s

	// MemoryTTL is how long the winning engine is remembered per domain.
	MemoryTTL time.Duration // default: 24h
}

// SyncConfig controls forwarding of scraped items to the backend.
type SyncConfig struct {
	// Enabled toggles forwarding. Scrapes still run when disabled.
	Enabled bool // default: true

	// BackendURL is the meal-planning backend base URL.
	BackendURL string // default: "http://localhost:3000"

	// Token is the extension token sent as a bearer credential.
	Token string

	// SigningSecret, when set, signs request bodies with HMAC-SHA256.
	SigningSecret string

	// Timeout bounds a single delivery.
	Timeout time.Duration // default: 10s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// SnapshotConfig controls the last-scrape debug store.
type SnapshotConfig struct {
	// MaxEntries is the maximum number of identities tracked.
	MaxEntries int // default: 500

	// TTL is how long a snapshot stays readable.
	TTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"

	// File, when set, also writes logs to a rotated file.
	File       string
	MaxSizeMB  int // default: 50
	MaxBackups int // default: 3
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is applied first if present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("CARTSYNC_HOST", "0.0.0.0"),
			Port: envIntOr("CARTSYNC_PORT", 3000),
			Mode: envOr("CARTSYNC_MODE", "release"),
			AllowedOrigins: envSliceOr("CARTSYNC_ALLOWED_ORIGINS",
				[]string{"chrome-extension://*", "http://localhost:3000"}),
		},
		Browser: BrowserConfig{
			Enabled:      envBoolOr("CARTSYNC_BROWSER", true),
			Headless:     envBoolOr("CARTSYNC_HEADLESS", true),
			MaxPages:     envIntOr("CARTSYNC_MAX_PAGES", 4),
			DefaultProxy: os.Getenv("CARTSYNC_PROXY"),
			NoSandbox:    envBoolOr("CARTSYNC_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("CARTSYNC_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			CartSegment:       envOr("CARTSYNC_CART_SEGMENT", "/my-cart"),
			ContainerSelector: envOr("CARTSYNC_CONTAINER_SELECTOR", ".basket-product-tiles"),
			DefaultTimeout:    envDurationOr("CARTSYNC_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("CARTSYNC_MAX_TIMEOUT", 120*time.Second),
			MaxHTMLBytes:      envIntOr("CARTSYNC_MAX_HTML_BYTES", 10<<20),
		},
		Engine: EngineConfig{
			EnableHTTP:       envBoolOr("CARTSYNC_HTTP_ENGINE", true),
			EscalationDelays: envDurationSliceOr("CARTSYNC_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			HTTPTimeout:      envDurationOr("CARTSYNC_HTTP_TIMEOUT", 5*time.Second),
			MemoryTTL:        envDurationOr("CARTSYNC_ENGINE_MEMORY_TTL", 24*time.Hour),
		},
		Sync: SyncConfig{
			Enabled:       envBoolOr("CARTSYNC_SYNC", true),
			BackendURL:    envOr("CARTSYNC_BACKEND_URL", "http://localhost:3000"),
			Token:         os.Getenv("CARTSYNC_EXTENSION_TOKEN"),
			SigningSecret: os.Getenv("CARTSYNC_SIGNING_SECRET"),
			Timeout:       envDurationOr("CARTSYNC_SYNC_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CARTSYNC_AUTH_ENABLED", false),
			APIKeys: envSliceOr("CARTSYNC_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CARTSYNC_RATE_RPS", 2.0),
			Burst:             envIntOr("CARTSYNC_RATE_BURST", 5),
		},
		Snapshot: SnapshotConfig{
			MaxEntries: envIntOr("CARTSYNC_SNAPSHOT_MAX_ENTRIES", 500),
			TTL:        envDurationOr("CARTSYNC_SNAPSHOT_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:      envOr("CARTSYNC_LOG_LEVEL", "info"),
			Format:     envOr("CARTSYNC_LOG_FORMAT", "json"),
			File:       os.Getenv("CARTSYNC_LOG_FILE"),
			MaxSizeMB:  envIntOr("CARTSYNC_LOG_MAX_SIZE_MB", 50),
			MaxBackups: envIntOr("CARTSYNC_LOG_MAX_BACKUPS", 3),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
