package models

import "encoding/json"

// SyncRequest is the payload for POST /metro/sync.
type SyncRequest struct {
	Items []ScrapedItem `json:"items"`
}

// SyncResponse is what the backend echoes for POST /metro/sync.
// The sample is kept raw: the backend echoes whatever it was sent.
type SyncResponse struct {
	OK             bool              `json:"ok"`
	Count          int               `json:"count"`
	ReceivedSample []json.RawMessage `json:"receivedSample"`
}

// Sync statuses reported in ScrapeResponse.Sync.
const (
	SyncQueued   = "queued"
	SyncDisabled = "disabled"
	SyncSkipped  = "skipped"
)
