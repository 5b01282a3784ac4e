package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealmajor/cartsync/models"
	"github.com/mealmajor/cartsync/snapshot"
)

// LastScrape returns a handler for GET /api/v1/scrape/last. It serves the
// caller's most recent scrape result, warnings included.
func LastScrape(store *snapshot.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			if res, ok := store.Get(identity(c)); ok {
				c.JSON(http.StatusOK, res)
				return
			}
		}
		respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "no scrape recorded for this caller", nil), models.TimingInfo{})
	}
}
