package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignacioe7/reviewcrawler/internal/app"
	"github.com/ignacioe7/reviewcrawler/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the crawl service with its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			application, err := app.Build(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			return application.Run(cmd.Context())
		},
	}
}
