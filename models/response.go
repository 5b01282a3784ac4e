package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape completed without errors.
	Success bool `json:"success"`

	// ID identifies the scrape; the same ID is served by /scrape/last.
	ID string `json:"id,omitempty"`

	// Strategy names the locator that found the cart lines
	// ("attribute", "stepper", "image"), empty when nothing matched.
	Strategy string `json:"strategy,omitempty"`

	// Count is len(Items).
	Count int `json:"count"`

	// Items are the merged cart lines in first-seen order.
	Items []ScrapedItem `json:"items"`

	// Warnings lists soft failures (missing container, defaulted fields).
	Warnings []string `json:"warnings,omitempty"`

	// Sync reports whether the items were queued for the backend.
	Sync string `json:"sync,omitempty"`

	// EngineUsed indicates which fetch engine produced the page
	// ("http", "rod", "rod-stealth"). Empty when HTML was posted.
	EngineUsed string `json:"engine_used,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// FetchMs is the time spent fetching and rendering the page.
	FetchMs int64 `json:"fetch_ms"`

	// ScrapeMs is the time spent locating and extracting cart lines.
	ScrapeMs int64 `json:"scrape_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int  `json:"max_pages"`
	ActivePages int  `json:"active_pages"`
	Browser     bool `json:"browser"`
}
