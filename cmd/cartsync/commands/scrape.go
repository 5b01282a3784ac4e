package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mealmajor/cartsync/cart"
	"github.com/mealmajor/cartsync/models"
)

var (
	scrapeURL  *string
	scrapeSync *bool
)

func init() {
	scrapeURL = scrapeCmd.Flags().String("url", "", "The address the page was saved from; defaults to a cart URL.")
	scrapeSync = scrapeCmd.Flags().Bool("sync", false, "Also post the items to the backend.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <saved-cart.html | -> [--url <page-url>] [--sync]",
	Short: "Scrapes a saved cart page and prints the items as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		sc, err := cart.NewScraper(cart.Options{
			CartSegment:       cfg.Scraper.CartSegment,
			ContainerSelector: cfg.Scraper.ContainerSelector,
			Logger:            slog.Default(),
		})
		if err != nil {
			return err
		}

		pageURL := *scrapeURL
		if pageURL == "" {
			pageURL = "file://" + sc.Gate().Segment()
		}
		if !sc.Gate().IsCartURL(pageURL) {
			return fmt.Errorf("%s is not a cart page (path must contain %q)", pageURL, sc.Gate().Segment())
		}

		res, err := sc.ScrapeHTML(ctx, in, pageURL)
		if err != nil {
			return err
		}

		out := struct {
			*cart.Result
			Sync *models.SyncResponse `json:"sync,omitempty"`
		}{Result: res}

		if *scrapeSync {
			client := newBackendClient(cfg.Sync, nil, slog.Default())
			out.Sync, err = client.Deliver(ctx, res.Items)
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}
