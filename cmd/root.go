package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"app-reviews-pipeline/config"
	"app-reviews-pipeline/utils"
)

var rootCmd = &cobra.Command{
	Use:   "appreviews",
	Short: "Reconcile app store reviews and derive per-app and daily metrics",
	Long: `appreviews ingests app catalog metadata and reviews from several
inconsistent sources, reconciles them into one canonical dataset and
derives the app KPI and daily metrics tables.

  acquire   collect raw metadata and reviews from the Play Store
  run       reconcile the raw inputs and write the output tables
  report    print the summary of the tables stored in a database`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the environment configuration and a logger at its level.
func setup() (*config.Config, *utils.Logger) {
	cfg := config.Load()
	return cfg, utils.NewLoggerFromString(cfg.LogLevel)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
