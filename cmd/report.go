package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"app-reviews-pipeline/models"
	"app-reviews-pipeline/services"
	"app-reviews-pipeline/storage"
	"app-reviews-pipeline/utils"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the summary of the tables stored by the last run",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var reportFlags struct {
	sqlitePath string
	postgres   bool
}

func init() {
	reportCmd.Flags().StringVar(&reportFlags.sqlitePath, "sqlite", "", "Read from this SQLite database")
	reportCmd.Flags().BoolVar(&reportFlags.postgres, "postgres", false, "Read from PostgreSQL")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, logger := setup()
	defer logger.Sync()

	var (
		db  *storage.SQLWriter
		err error
	)
	switch {
	case reportFlags.sqlitePath != "":
		db, err = storage.NewSQLiteWriter(reportFlags.sqlitePath)
	case reportFlags.postgres:
		db, err = storage.NewPostgresWriter(cfg.DSN(), &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		})
	default:
		return errors.New("report: one of --sqlite or --postgres is required")
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	kpis, err := db.FetchAppKPIs(ctx)
	if err != nil {
		return err
	}
	daily, err := db.FetchDaily(ctx)
	if err != nil {
		return err
	}

	insights := services.NewInsightService(logger)
	out := &models.Outputs{AppKPIs: kpis, Daily: daily}
	insights.Print(os.Stdout, out, insights.Summary(kpis, daily))
	return nil
}
