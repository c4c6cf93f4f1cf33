package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"app-reviews-pipeline/models"
)

// Output file names inside the output directory.
const (
	AppKPIsFile   = "app_level_kpis.csv"
	DailyFile     = "daily_metrics.csv"
	ReviewsFile   = "apps_reviews.csv"
	CatalogFile   = "apps_catalog.csv"
	tmpFilePrefix = ".tmp-"
	backupSuffix  = ".prev"
)

var rename = os.Rename

// CSVWriter writes the reconciled tables as CSV files.
// It is safe for concurrent use.
type CSVWriter struct {
	mu  sync.Mutex
	dir string
}

// NewCSVWriter creates the output directory if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir}, nil
}

type csvTable struct {
	name    string
	header  []string
	records [][]string
}

// WriteOutputs stages every table as a temp file and renames them into place
// only once all of them were written. The previous files are moved aside
// first and put back if any rename fails, so the directory holds either the
// old run or the new one. A crash between renames can still leave a mix; the
// .prev backups stay on disk in that case.
func (c *CSVWriter) WriteOutputs(_ context.Context, out *models.Outputs) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tables := []csvTable{
		{name: AppKPIsFile, header: models.AppKPIColumns},
		{name: DailyFile, header: models.DailyMetricColumns},
		{name: ReviewsFile, header: models.ReviewColumns},
		{name: CatalogFile, header: models.CatalogColumns},
	}
	for _, k := range out.AppKPIs {
		tables[0].records = append(tables[0].records, kpiRecord(k))
	}
	for _, d := range out.Daily {
		tables[1].records = append(tables[1].records, dailyRecord(d))
	}
	for _, r := range out.Reviews {
		tables[2].records = append(tables[2].records, reviewRecord(r))
	}
	if out.Catalog != nil {
		for _, e := range out.Catalog.Entries {
			tables[3].records = append(tables[3].records, catalogRecord(e))
		}
	}

	staged := make([]string, 0, len(tables))
	cleanup := func() {
		for _, p := range staged {
			_ = os.Remove(p)
		}
	}

	for _, t := range tables {
		tmp, err := c.stage(t)
		if err != nil {
			cleanup()
			return err
		}
		staged = append(staged, tmp)
	}

	if err := c.commit(tables, staged); err != nil {
		cleanup()
		return err
	}
	return nil
}

// commit renames staged files over their targets, derived tables first.
// On failure every target already replaced is restored from its backup.
func (c *CSVWriter) commit(tables []csvTable, staged []string) error {
	type done struct {
		target string
		backup string // empty when no previous file existed
	}
	var committed []done

	rollback := func() {
		for i := len(committed) - 1; i >= 0; i-- {
			d := committed[i]
			if d.backup == "" {
				_ = os.Remove(d.target)
				continue
			}
			_ = rename(d.backup, d.target)
		}
	}

	for i, t := range tables {
		target := filepath.Join(c.dir, t.name)
		backup := filepath.Join(c.dir, tmpFilePrefix+t.name+backupSuffix)

		if _, err := os.Stat(target); err == nil {
			if err := rename(target, backup); err != nil {
				rollback()
				return fmt.Errorf("csv: back up %s: %w", t.name, err)
			}
		} else {
			backup = ""
		}

		if err := rename(staged[i], target); err != nil {
			if backup != "" {
				_ = rename(backup, target)
			}
			rollback()
			return fmt.Errorf("csv: commit %s: %w", t.name, err)
		}
		committed = append(committed, done{target: target, backup: backup})
	}

	for _, d := range committed {
		if d.backup != "" {
			_ = os.Remove(d.backup)
		}
	}
	return nil
}

func (c *CSVWriter) stage(t csvTable) (string, error) {
	f, err := os.CreateTemp(c.dir, tmpFilePrefix+t.name+"-*")
	if err != nil {
		return "", fmt.Errorf("csv: create temp for %s: %w", t.name, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.header); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("csv: write header: %w", err)
	}
	if err := w.WriteAll(t.records); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("csv: write %s: %w", t.name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("csv: close %s: %w", t.name, err)
	}
	return f.Name(), nil
}

// Close is a no-op; files are closed as soon as they are written.
func (c *CSVWriter) Close() error {
	return nil
}
