package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mealmajor/cartsync/backend"
	"github.com/mealmajor/cartsync/browser"
	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/models"
)

var (
	watchHeadless *bool
	watchStealth  *bool
	watchCookies  *[]string
)

func init() {
	watchHeadless = watchCmd.Flags().Bool("headless", false, "Run Chrome without a window.")
	watchStealth = watchCmd.Flags().Bool("stealth", true, "Inject anti-bot-detection evasions.")
	watchCookies = watchCmd.Flags().StringArray("cookie", nil, "A name=value store cookie; may be repeated.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <cart-url> [--cookie name=value]...",
	Short: "Opens the cart in Chrome with a sync button that scrapes and posts the items.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		sc, err := cart.NewScraper(cart.Options{
			CartSegment:       cfg.Scraper.CartSegment,
			ContainerSelector: cfg.Scraper.ContainerSelector,
			Logger:            logger,
		})
		if err != nil {
			return err
		}

		cookies, err := parseCookies(args[0], *watchCookies)
		if err != nil {
			return err
		}

		var client *backend.Client
		if cfg.Sync.Enabled {
			client = newBackendClient(cfg.Sync, nil, logger)
		}

		bcfg := cfg.Browser
		bcfg.Headless = *watchHeadless
		br, err := browser.New(bcfg, logger)
		if err != nil {
			return err
		}
		defer br.Close()

		return br.Watch(cmd.Context(), browser.WatchRequest{
			URL:     args[0],
			Segment: sc.Gate().Segment(),
			Cookies: cookies,
			Stealth: *watchStealth,
		}, syncClick(sc, client))
	},
}

// syncClick scrapes the clicked page and, when client is set, queues the
// items for the backend. Delivery failures are only logged.
func syncClick(sc *cart.Scraper, client *backend.Client) browser.ScrapeFunc {
	return func(ctx context.Context, pageURL, html string) (string, error) {
		if !sc.Gate().IsCartURL(pageURL) {
			return "", models.NewScrapeError(models.ErrCodeNotCartPage, "not on the cart page", nil)
		}

		res, err := sc.ScrapeHTML(ctx, strings.NewReader(html), pageURL)
		if err != nil {
			return "", err
		}

		if client == nil {
			return fmt.Sprintf("Scraped %d items (sync disabled)", len(res.Items)), nil
		}
		client.DeliverAsync(res.Items, nil)
		return fmt.Sprintf("Scraped %d items, sync queued", len(res.Items)), nil
	}
}

// parseCookies turns name=value pairs into cookies scoped to the cart host.
func parseCookies(cartURL string, pairs []string) ([]http.Cookie, error) {
	u, err := url.Parse(cartURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid cart url %q", cartURL)
	}

	cookies := make([]http.Cookie, 0, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid cookie %q: want name=value", p)
		}
		cookies = append(cookies, http.Cookie{
			Name:   strings.TrimSpace(name),
			Value:  value,
			Domain: u.Hostname(),
			Path:   "/",
		})
	}
	return cookies, nil
}
