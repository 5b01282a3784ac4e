// Package backend forwards scraped cart items to the meal-planning
// backend's sync endpoint.
package backend

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mealmajor/cartsync/metrics"
	"github.com/mealmajor/cartsync/models"
)

// SyncPath is the backend route that receives cart items.
const SyncPath = "/metro/sync"

// SignatureHeader carries "sha256=<hex>" of the request body when a
// signing secret is configured.
const SignatureHeader = "X-Cartsync-Signature"

// Options configures a Client.
type Options struct {
	BaseURL       string        // default: "http://localhost:3000"
	Token         string        // sent as a bearer token when set
	SigningSecret string        // enables SignatureHeader when set
	Timeout       time.Duration // default: 10s
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Client posts scraped items to the backend.
type Client struct {
	http    *resty.Client
	secret  string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:3000"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "Cartsync/1.0")
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}

	return &Client{
		http:    client,
		secret:  opts.SigningSecret,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Deliver posts items synchronously and decodes the backend's echo.
// A non-2xx status is an error.
func (c *Client) Deliver(ctx context.Context, items []models.ScrapedItem) (*models.SyncResponse, error) {
	if items == nil {
		items = []models.ScrapedItem{}
	}
	body, err := json.Marshal(models.SyncRequest{Items: items})
	if err != nil {
		return nil, fmt.Errorf("backend: marshal items: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&models.SyncResponse{})
	if c.secret != "" {
		req.SetHeader(SignatureHeader, "sha256="+Sign(c.secret, body))
	}

	resp, err := req.Post(SyncPath)
	if err != nil {
		c.metrics.RecordSync(metrics.OutcomeError)
		return nil, models.NewScrapeError(models.ErrCodeSyncFailed, "backend unreachable", err)
	}
	if resp.IsError() {
		c.metrics.RecordSync(metrics.OutcomeError)
		return nil, models.NewScrapeError(models.ErrCodeSyncFailed,
			fmt.Sprintf("backend returned status %d", resp.StatusCode()), nil)
	}

	c.metrics.RecordSync(metrics.OutcomeSuccess)
	return resp.Result().(*models.SyncResponse), nil
}

// DeliverAsync posts items in the background. There is no retry; the
// outcome is only logged. done, when non-nil, receives the result.
func (c *Client) DeliverAsync(items []models.ScrapedItem, done func(*models.SyncResponse, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		res, err := c.Deliver(ctx, items)
		if err != nil {
			c.logger.Warn("sync delivery failed", "items", len(items), "error", err)
		} else {
			c.logger.Info("sync delivered", "items", len(items), "backend_count", res.Count)
		}
		if done != nil {
			done(res, err)
		}
	}()
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is a valid SignatureHeader value for body.
func Verify(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(Sign(secret, body)))
}
