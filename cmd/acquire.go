package cmd

import (
	"github.com/spf13/cobra"

	"app-reviews-pipeline/scraper/googleplay"
	"app-reviews-pipeline/storage"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Collect raw app metadata and reviews from the Play Store",
	Long: `Search the Play Store (or take APP_IDS), then write
apps_metadata.json and apps_reviews.jsonl into the raw directory, ready
for "appreviews run".`,
	Args: cobra.NoArgs,
	RunE: runAcquire,
}

var acquireFlags struct {
	query  string
	rawDir string
}

func init() {
	acquireCmd.Flags().StringVarP(&acquireFlags.query, "query", "q", "", "Search query (defaults to $SEARCH_QUERY)")
	acquireCmd.Flags().StringVar(&acquireFlags.rawDir, "raw-dir", "", "Output directory (defaults to $RAW_DIR)")

	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, _ []string) error {
	cfg, logger := setup()
	defer logger.Sync()

	if acquireFlags.query != "" {
		cfg.SearchQuery = acquireFlags.query
	}
	if acquireFlags.rawDir != "" {
		cfg.RawDir = acquireFlags.rawDir
	}

	logger.Info("=== Play Store acquisition starting ===")
	logger.Info("Config: query %q | apps %d | reviews/app %d | concurrency %d | rate %dms",
		cfg.SearchQuery, cfg.SearchHits, cfg.ReviewsPerApp, cfg.MaxConcurrency, cfg.RateLimitMs)

	writer, err := storage.NewJSONRawWriter(cfg.RawDir)
	if err != nil {
		return err
	}
	defer writer.Close()

	ctx, cancel := signalContext()
	defer cancel()

	apps, reviews, err := googleplay.New(cfg, logger).Scrape(ctx)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		logger.Warn("No apps were collected; raw files left untouched")
		return nil
	}

	var raw storage.RawWriter = writer
	if err := raw.WriteApps(apps); err != nil {
		return err
	}
	if err := raw.WriteReviews(reviews); err != nil {
		return err
	}
	logger.Info("Raw data saved to %s (%d apps, %d reviews)", cfg.RawDir, len(apps), len(reviews))
	return nil
}
