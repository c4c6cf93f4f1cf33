package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"app-reviews-pipeline/config"
	"app-reviews-pipeline/metrics"
	"app-reviews-pipeline/pipeline"
	"app-reviews-pipeline/storage"
	"app-reviews-pipeline/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation pipeline",
	Long: `Read the catalog and every review source, reconcile them and write
app_level_kpis and daily_metrics (plus the reconciled intermediate tables)
to every enabled sink. Without --config the default data/raw and
data/processed layout is used.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var runFlags struct {
	configPath string
	outputDir  string
	noPostgres bool
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.configPath, "config", "c", "", "Pipeline YAML file (defaults to $PIPELINE_CONFIG)")
	runCmd.Flags().StringVarP(&runFlags.outputDir, "output-dir", "o", "", "Override the output directory")
	runCmd.Flags().BoolVar(&runFlags.noPostgres, "no-postgres", false, "Skip the PostgreSQL sink even if enabled")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, logger := setup()
	defer logger.Sync()

	pc, err := loadPipelineConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("=== App reviews pipeline starting ===")
	logger.Info("Config: %d review sources | output: %s %v | sqlite: %q | postgres: %v",
		len(pc.Reviews), pc.Output.Dir, pc.Output.Formats, pc.Output.SQLitePath, pc.Output.Postgres)

	p := pipeline.New(pc, logger)
	out, err := p.Run(ctx)
	if err != nil {
		return err
	}

	sinks, err := openSinks(pc, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}()

	if err := pipeline.Publish(ctx, out, sinks...); err != nil {
		return err
	}
	logger.Info("Outputs written to %d sinks", len(sinks))

	if pc.Output.MetricsTextfile != "" {
		collector := metrics.NewCollector(logger)
		collector.Observe(out.Report)
		if err := collector.WriteTextfile(pc.Output.MetricsTextfile); err != nil {
			logger.Warn("Metrics not written: %v", err)
		}
	}

	insights := p.Insights()
	insights.Print(os.Stdout, out, insights.Summary(out.AppKPIs, out.Daily))
	return nil
}

func loadPipelineConfig(cfg *config.Config) (*config.Pipeline, error) {
	path := runFlags.configPath
	if path == "" {
		path = cfg.PipelinePath
	}

	pc := config.DefaultPipeline()
	if path != "" {
		var err error
		if pc, err = config.LoadPipeline(path); err != nil {
			return nil, err
		}
	}

	if runFlags.outputDir != "" {
		pc.Output.Dir = runFlags.outputDir
	}
	if runFlags.noPostgres {
		pc.Output.Postgres = false
	}
	return pc, pc.Validate()
}

// openSinks returns every enabled output writer. On error the writers that
// were already opened are closed.
func openSinks(pc *config.Pipeline, cfg *config.Config, logger *utils.Logger) ([]storage.OutputWriter, error) {
	var sinks []storage.OutputWriter
	fail := func(err error) ([]storage.OutputWriter, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}

	if pc.Output.WantsOutput(config.OutputCSV) {
		w, err := storage.NewCSVWriter(pc.Output.Dir)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, w)
	}
	if pc.Output.WantsOutput(config.OutputParquet) {
		w, err := storage.NewParquetWriter(pc.Output.Dir)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, w)
	}
	if pc.Output.SQLitePath != "" {
		w, err := storage.NewSQLiteWriter(pc.Output.SQLitePath)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, w)
	}
	if pc.Output.Postgres {
		w, err := storage.NewPostgresWriter(cfg.DSN(), &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure the database is running: docker compose up -d")
			return fail(err)
		}
		sinks = append(sinks, w)
	}
	return sinks, nil
}
