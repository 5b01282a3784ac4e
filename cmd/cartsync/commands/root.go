package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mealmajor/cartsync/config"
)

var (
	cfg       *config.Config
	closeLogs func()
)

var rootCmd = &cobra.Command{
	Use:   "cartsync",
	Short: "cartsync reads grocery cart pages and syncs the items to the meal planner.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		closeLogs = initLogger(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogs != nil {
			closeLogs()
		}
	},
	SilenceUsage: true,
}

// ExecuteContext runs the CLI and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
