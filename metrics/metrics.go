package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"app-reviews-pipeline/models"
	"app-reviews-pipeline/utils"
)

const namespace = "appreviews"

// Collector holds the pipeline metrics in a private registry. The pipeline
// is a batch job, so metrics are exported through a node-exporter textfile
// instead of an HTTP endpoint.
type Collector struct {
	logger   *utils.Logger
	registry *prometheus.Registry

	rowsRead   *prometheus.CounterVec
	malformed  *prometheus.CounterVec
	unmappable *prometheus.CounterVec
	invalid    *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	duplicates prometheus.Counter

	retained    prometheus.Gauge
	apps        prometheus.Gauge
	days        prometheus.Gauge
	lastSuccess prometheus.Gauge

	runDuration prometheus.Histogram
}

// NewCollector creates a collector with every metric registered.
func NewCollector(logger *utils.Logger) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		logger:   logger,
		registry: registry,

		rowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rows_total",
			Help:      "Raw rows decoded per review source",
		}, []string{"source"}),

		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_malformed_total",
			Help:      "Undecodable rows or lines per review source",
		}, []string{"source"}),

		unmappable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_unmappable_total",
			Help:      "Rows with no recognised field per review source",
		}, []string{"source"}),

		invalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_reviews_total",
			Help:      "Reviews dropped by the validity filter, by reason",
		}, []string{"reason"}),

		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_skipped_total",
			Help:      "Sources skipped because they were missing, unreadable or empty",
		}, []string{"source"}),

		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_reviews_total",
			Help:      "Reviews dropped as duplicates of an earlier review_id",
		}),

		retained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retained_reviews",
			Help:      "Reviews retained by the last run",
		}),

		apps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "apps",
			Help:      "Rows in the app KPI table of the last run",
		}),

		days: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "days",
			Help:      "Rows in the daily metrics table of the last run",
		}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished",
		}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
	}

	registry.MustRegister(
		c.rowsRead,
		c.malformed,
		c.unmappable,
		c.invalid,
		c.skipped,
		c.duplicates,
		c.retained,
		c.apps,
		c.days,
		c.lastSuccess,
		c.runDuration,
	)

	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records a finished run.
func (c *Collector) Observe(r *models.RunReport) {
	for _, src := range r.Sources {
		if src.Skipped {
			c.skipped.WithLabelValues(src.Name).Inc()
			continue
		}
		c.rowsRead.WithLabelValues(src.Name).Add(float64(src.Rows))
		c.malformed.WithLabelValues(src.Name).Add(float64(src.Malformed))
		c.unmappable.WithLabelValues(src.Name).Add(float64(src.Unmappable))
	}
	for reason, n := range r.Invalid {
		c.invalid.WithLabelValues(reason).Add(float64(n))
	}
	c.duplicates.Add(float64(r.Duplicates))

	c.retained.Set(float64(r.Retained))
	c.apps.Set(float64(r.Apps))
	c.days.Set(float64(r.Days))
	c.lastSuccess.Set(float64(r.FinishedAt.Unix()))
	c.runDuration.Observe(r.Duration().Seconds())
}

// WriteTextfile writes every metric in the Prometheus text format. The file
// is replaced atomically so the node exporter never reads a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("metrics: mkdir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	c.logger.Debug("[metrics] Wrote %s", path)
	return nil
}
