package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ignacioe7/reviewcrawler/internal/app"
	"github.com/ignacioe7/reviewcrawler/internal/config"
	"github.com/ignacioe7/reviewcrawler/internal/crawler"
	"github.com/ignacioe7/reviewcrawler/internal/id/uuid"
)

func newCrawlCmd() *cobra.Command {
	var (
		listingURL   string
		region       string
		urls         []string
		defaultCount int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl immediately and exits",
		Long: `Crawls the given attraction URLs, or everything discovered from a
region listing URL, then persists and exports the results and exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listingURL == "" && len(urls) == 0 {
				return fmt.Errorf("either --listing or at least one --url is required")
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			application, err := app.Build(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer func() {
				if cerr := application.Close(cmd.Context()); cerr != nil {
					application.Logger().Warn("shutdown incomplete", zap.Error(cerr))
				}
			}()

			items := make([]crawler.WorkItem, 0, len(urls))
			for _, u := range urls {
				items = append(items, crawler.WorkItem{ID: crawler.SlugID(u), URL: u})
			}
			req := crawler.RunRequest{
				RunID:        uuid.New().NewID(),
				Region:       region,
				ListingURL:   listingURL,
				Items:        items,
				DefaultCount: defaultCount,
			}
			if err := application.Runs().CreateRun(req); err != nil {
				return fmt.Errorf("register run: %w", err)
			}
			application.Runner().RunOnce(cmd.Context(), req)

			run, err := application.Runs().GetRun(req.RunID)
			if err != nil {
				return fmt.Errorf("read run outcome: %w", err)
			}
			fmt.Printf("run %s: %s, %d items, %d records\n",
				run.ID, run.Phase, run.ItemsDone, run.Records)
			if run.Phase == crawler.RunFailed {
				return fmt.Errorf("run failed: %s", run.Note)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listingURL, "listing", "", "region listing URL to discover attractions from")
	cmd.Flags().StringVar(&region, "region", "", "region label for persisted results")
	cmd.Flags().StringArrayVar(&urls, "url", nil, "attraction review URL (repeatable)")
	cmd.Flags().IntVar(&defaultCount, "default-count", 0, "fallback review count when the site reports none")
	return cmd
}
