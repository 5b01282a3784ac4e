package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("CARTSYNC_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	c := newAPIClient(apiURL, os.Getenv("CARTSYNC_API_KEY"))

	s := server.NewMCPServer(
		"cartsync",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapeCartTool := mcp.NewTool("scrape_cart",
		mcp.WithDescription("Read the items in a grocery cart page. Pass the rendered page HTML, or only the URL to have the service render it with the store session cookies it is given."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The cart page address; its path must contain the cart segment (default /my-cart)"),
		),
		mcp.WithString("html",
			mcp.Description("The rendered cart page. When omitted the page is fetched."),
		),
		mcp.WithBoolean("sync",
			mcp.Description("Also send the items to the meal planner backend"),
		),
	)
	s.AddTool(scrapeCartTool, handleScrapeCart(c))

	lastScrapeTool := mcp.NewTool("last_scrape",
		mcp.WithDescription("Show the most recent cart scrape made with this API key, including warnings."),
	)
	s.AddTool(lastScrapeTool, handleLastScrape(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
