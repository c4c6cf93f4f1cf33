// Package pipeline wires the reconciliation stages into one batch run:
// read, normalize, merge, clean, enrich, aggregate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"app-reviews-pipeline/config"
	"app-reviews-pipeline/models"
	"app-reviews-pipeline/services"
	"app-reviews-pipeline/sources"
	"app-reviews-pipeline/storage"
	"app-reviews-pipeline/utils"
)

// ErrNoUsableSource aborts a run in which no review source produced a row.
var ErrNoUsableSource = errors.New("no usable review source")

// Pipeline runs the reconciliation over one configured set of inputs.
type Pipeline struct {
	cfg      *config.Pipeline
	logger   *utils.Logger
	now      func() time.Time
	cleaner  *services.Cleaner
	enricher *services.Enricher
	insights *services.InsightService
}

func New(cfg *config.Pipeline, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		cleaner:  services.NewCleaner(logger),
		enricher: services.NewEnricher(logger),
		insights: services.NewInsightService(logger),
	}
}

// Insights exposes the aggregation service, e.g. for printing a summary.
func (p *Pipeline) Insights() *services.InsightService {
	return p.insights
}

// Run executes every stage and returns the reconciled tables. Nothing is
// written; see Publish.
func (p *Pipeline) Run(ctx context.Context) (*models.Outputs, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("pipeline: run id: %w", err)
	}
	report := models.NewRunReport(runID.String(), p.now())
	log := p.logger.With("run_id", report.RunID)
	log.Info("[pipeline] Run starting with %d review sources", len(p.cfg.Reviews))

	catalog := p.loadCatalog(log, report)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalizer := services.NewReviewNormalizer()
	var batches [][]models.Row
	usable := 0

	for _, res := range sources.ReadAll(p.cfg.Reviews, p.cfg.Workers) {
		stats := models.SourceStats{Name: res.Source.Name, Path: res.Source.Path, Format: res.Source.Format}

		if res.Err != nil {
			stats.Skipped = true
			stats.SkipReason = skipReason(res.Err)
			log.Warn("[pipeline] Skipping source %s: %v", res.Source.Name, res.Err)
			report.Sources = append(report.Sources, stats)
			continue
		}

		b := res.Batch
		stats.Rows = len(b.Rows)
		stats.Malformed = b.Skipped
		report.Malformed += b.Skipped

		if len(b.Rows) == 0 {
			stats.Skipped = true
			stats.SkipReason = "empty"
			log.Warn("[pipeline] Skipping source %s: no decodable rows", res.Source.Name)
			report.Sources = append(report.Sources, stats)
			continue
		}
		usable++
		report.InputRows += len(b.Rows)

		rows := make([]models.Row, 0, len(b.Rows))
		for i, raw := range b.Rows {
			row, ok := normalizer.Normalize(raw, res.Source.Name, b.Lines[i])
			if !ok {
				stats.Unmappable++
				continue
			}
			rows = append(rows, row)
		}
		report.Unmappable += stats.Unmappable
		batches = append(batches, rows)
		report.Sources = append(report.Sources, stats)

		log.Info("[pipeline] Source %s: %d rows (malformed %d, unmappable %d)",
			res.Source.Name, stats.Rows, stats.Malformed, stats.Unmappable)
	}

	if usable == 0 {
		log.Error("[pipeline] None of the %d review sources is usable", len(p.cfg.Reviews))
		return nil, ErrNoUsableSource
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := services.Merge(normalizer.Columns(), batches...)
	cleaned := p.cleaner.Clean(merged)
	report.Invalid = cleaned.Invalid
	report.Duplicates = cleaned.Duplicates
	report.Retained = len(cleaned.Reviews)

	p.enricher.Enrich(cleaned.Reviews, catalog)

	out := &models.Outputs{
		Catalog: catalog,
		Reviews: cleaned.Reviews,
		AppKPIs: p.insights.AppKPIs(cleaned.Reviews),
		Daily:   p.insights.DailyMetrics(cleaned.Reviews),
		Report:  report,
	}
	report.Apps = len(out.AppKPIs)
	report.Days = len(out.Daily)
	report.FinishedAt = p.now()

	log.Info("[pipeline] Run finished: input %d, retained %d, malformed %d, unmappable %d, invalid %d, duplicates %d (%s)",
		report.InputRows, report.Retained, report.Malformed, report.Unmappable,
		report.InvalidTotal(), report.Duplicates, report.Duration())
	return out, nil
}

// loadCatalog never fails the run: an absent or unreadable catalog means
// every review falls back to its source-supplied name.
func (p *Pipeline) loadCatalog(log *utils.Logger, report *models.RunReport) *models.Catalog {
	src := p.cfg.Catalog
	report.Catalog = models.SourceStats{Name: src.Name, Path: src.Path, Format: src.Format}

	if src.Path == "" {
		report.Catalog.Skipped = true
		report.Catalog.SkipReason = "not configured"
		log.Warn("[pipeline] No catalog configured; app names come from review sources")
		return models.NewCatalog(nil)
	}

	b, err := sources.Open(src)
	if err != nil {
		report.Catalog.Skipped = true
		report.Catalog.SkipReason = skipReason(err)
		log.Warn("[pipeline] Catalog unavailable: %v", err)
		return models.NewCatalog(nil)
	}
	report.Catalog.Rows = len(b.Rows)
	report.Catalog.Malformed = b.Skipped

	normalizer := services.NewCatalogNormalizer()
	rows := make([]models.Row, 0, len(b.Rows))
	for i, raw := range b.Rows {
		row, ok := normalizer.Normalize(raw, src.Name, b.Lines[i])
		if !ok {
			report.Catalog.Unmappable++
			continue
		}
		rows = append(rows, row)
	}

	catalog, stats := services.BuildCatalog(services.Merge(normalizer.Columns(), rows), log)
	report.CatalogRows = catalog.Len()
	report.CatalogDuplicates = stats.Duplicates
	report.CatalogMissingID = stats.MissingID
	return catalog
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, sources.ErrSourceMissing):
		return "missing"
	case errors.Is(err, sources.ErrUnknownFormat):
		return "unknown format"
	default:
		return "unreadable"
	}
}

// Publish writes out to every sink in turn. Each sink stores both derived
// tables or neither; the first failing sink stops the publish.
func Publish(ctx context.Context, out *models.Outputs, sinks ...storage.OutputWriter) error {
	for _, s := range sinks {
		if err := s.WriteOutputs(ctx, out); err != nil {
			return fmt.Errorf("pipeline: publish: %w", err)
		}
	}
	return nil
}
