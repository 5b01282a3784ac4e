package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/models"
)

// apiClient calls the cartsync HTTP API.
type apiClient struct {
	http *resty.Client
}

func newAPIClient(apiURL, apiKey string) *apiClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(apiURL, "/"))
	client.SetTimeout(150 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("X-API-Key", apiKey)
	}
	return &apiClient{http: client}
}

func handleScrapeCart(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var out models.ScrapeResponse
		_, err = c.http.R().
			SetContext(ctx).
			SetBody(models.ScrapeRequest{
				URL:  url,
				HTML: request.GetString("html", ""),
				Sync: request.GetBool("sync", false),
			}).
			SetResult(&out).
			SetError(&out).
			Post("/api/v1/scrape")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		if !out.Success {
			errMsg := "scrape failed"
			if out.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", out.Error.Code, out.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Strategy: %s\n", orNone(out.Strategy))
		if out.Sync != "" {
			fmt.Fprintf(&b, "Sync: %s\n", out.Sync)
		}
		writeItems(&b, out.Items, out.Warnings)
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleLastScrape(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var res cart.Result
		var apiErr models.ScrapeResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&res).
			SetError(&apiErr).
			Get("/api/v1/scrape/last")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if resp.IsError() {
			if apiErr.Error != nil {
				return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("API returned status %d", resp.StatusCode())), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Scrape %s at %s\n", res.ID, res.ScrapedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "Source: %s\nStrategy: %s\n", res.SourceURL, orNone(res.Strategy))
		writeItems(&b, res.Items, res.Warnings)
		return mcp.NewToolResultText(b.String()), nil
	}
}

func writeItems(b *strings.Builder, items []models.ScrapedItem, warnings []string) {
	fmt.Fprintf(b, "Items: %d\n", len(items))
	for _, it := range items {
		fmt.Fprintf(b, "- %d x %s", it.Quantity, it.Name)
		if pack := packSize(it); pack != "" {
			fmt.Fprintf(b, " (%s)", pack)
		}
		b.WriteByte('\n')
	}
	if len(warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(b, "- %s\n", w)
		}
	}
}

// packSize renders "450 g avg." style pack details.
func packSize(it models.ScrapedItem) string {
	var parts []string
	if it.UnitFactor > 0 {
		parts = append(parts, fmt.Sprint(it.UnitFactor))
	}
	if it.Unit != "" {
		parts = append(parts, it.Unit)
	}
	if it.UnitQualifier != "" {
		parts = append(parts, it.UnitQualifier)
	}
	return strings.Join(parts, " ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
