// Package cmd defines the CLI commands for the reviewcrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviewcrawler",
		Short: "Acquires attraction reviews from paginated listing sites",
		Long: `reviewcrawler walks attraction review listings page by page,
deduplicates what it finds, and persists the results. It runs either as a
long-lived service with an HTTP API (serve) or as a one-shot crawl (crawl).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (optional)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
