package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealmajor/cartsync/api/middleware"
	"github.com/mealmajor/cartsync/engine"
	"github.com/mealmajor/cartsync/models"
)

// Fetcher renders a cart page. *engine.Dispatcher implements it.
type Fetcher interface {
	Dispatch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// Forwarder sends items to the backend in the background.
// *backend.Client implements it.
type Forwarder interface {
	DeliverAsync(items []models.ScrapedItem, done func(*models.SyncResponse, error))
}

// PoolReporter reports browser pool usage. *browser.Browser implements it.
type PoolReporter interface {
	Stats() models.PoolStats
}

// identity is the API key set by the auth middleware, or the client IP.
func identity(c *gin.Context) string {
	if key := c.GetString(middleware.IdentityKey); key != "" {
		return key
	}
	return c.ClientIP()
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			scrapeErr = models.NewScrapeError(models.ErrCodeTimeout, "fetch timed out", err)
		case errors.Is(err, engine.ErrNeedsBrowser):
			scrapeErr = models.NewScrapeError(models.ErrCodeNavigation, "page did not render without a browser", err)
		default:
			scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
		}
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Items:   []models.ScrapedItem{},
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSyncFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotCartPage:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
