package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealmajor/cartsync/backend"
	"github.com/mealmajor/cartsync/models"
)

const syncSampleSize = 3

// MetroSync returns a handler for POST /metro/sync, the backend's receiving
// end. It counts and echoes what it was sent and stores nothing. Anything
// other than an array under "items" counts as zero items. When secret is
// set, the body must carry a valid signature header.
func MetroSync(secret string, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "failed to read body", err), models.TimingInfo{})
			return
		}

		if secret != "" && !backend.Verify(secret, body, c.GetHeader(backend.SignatureHeader)) {
			respondError(c, models.NewScrapeError(models.ErrCodeUnauthorized, "invalid or missing signature", nil), models.TimingInfo{})
			return
		}

		if len(body) > 0 && !json.Valid(body) {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "body is not valid JSON", nil), models.TimingInfo{})
			return
		}

		// Bodies that are not objects carry no items.
		var payload struct {
			Items json.RawMessage `json:"items"`
		}
		_ = json.Unmarshal(body, &payload)

		var items []json.RawMessage
		if len(payload.Items) > 0 {
			if err := json.Unmarshal(payload.Items, &items); err != nil {
				items = nil
			}
		}

		sample := make([]json.RawMessage, 0, syncSampleSize)
		for i := 0; i < len(items) && i < syncSampleSize; i++ {
			sample = append(sample, items[i])
		}

		logger.Info("metro sync received", "count", len(items), "sample", rawStrings(sample))

		c.JSON(http.StatusCreated, models.SyncResponse{
			OK:             true,
			Count:          len(items),
			ReceivedSample: sample,
		})
	}
}

func rawStrings(raw []json.RawMessage) []string {
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = string(r)
	}
	return out
}
