package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"app-reviews-pipeline/models"
	"app-reviews-pipeline/utils"
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name        string
	floatType   string
	tsType      string
	dateType    string
	placeholder func(n int) string
	timeValue   func(t time.Time) any
	dateValue   func(t time.Time) any
}

var postgresDialect = dialect{
	name:        "postgres",
	floatType:   "DOUBLE PRECISION",
	tsType:      "TIMESTAMP",
	dateType:    "DATE",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	timeValue:   func(t time.Time) any { return t },
	dateValue:   func(t time.Time) any { return t },
}

// SQLWriter persists reconciled tables to a relational database.
type SQLWriter struct {
	db      *sql.DB
	dialect dialect
}

// NewPostgresWriter opens a connection to PostgreSQL, retrying the initial
// ping, runs schema migrations and returns a ready-to-use SQLWriter.
func NewPostgresWriter(dsn string, retry *utils.RetryConfig) (*SQLWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do("postgres-ping", db.Ping); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return newSQLWriter(db, postgresDialect)
}

func newSQLWriter(db *sql.DB, d dialect) (*SQLWriter, error) {
	w := &SQLWriter{db: db, dialect: d}
	if err := w.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", d.name, err)
	}
	return w, nil
}

func (w *SQLWriter) schema() []string {
	d := w.dialect
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS apps_catalog (
			app_id        TEXT PRIMARY KEY,
			title         TEXT NOT NULL DEFAULT '',
			developer     TEXT,
			genre         TEXT,
			rating_score  %[1]s,
			ratings_count BIGINT,
			installs      BIGINT,
			price         %[1]s NOT NULL DEFAULT 0
		)`, d.floatType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS app_reviews (
			review_id       TEXT PRIMARY KEY,
			app_id          TEXT NOT NULL DEFAULT '',
			app_name        TEXT NOT NULL,
			user_name       TEXT,
			score           INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
			content         TEXT,
			thumbs_up_count INTEGER NOT NULL DEFAULT 0,
			at              %s NOT NULL
		)`, d.tsType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS app_level_kpis (
			app_id                  TEXT NOT NULL,
			app_name                TEXT NOT NULL,
			num_reviews             INTEGER NOT NULL,
			avg_rating              %[1]s NOT NULL,
			pct_low_rating          %[1]s NOT NULL,
			first_review_date       %[2]s NOT NULL,
			most_recent_review_date %[2]s NOT NULL,
			PRIMARY KEY (app_id, app_name)
		)`, d.floatType, d.tsType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS daily_metrics (
			date              %[2]s PRIMARY KEY,
			daily_num_reviews INTEGER NOT NULL,
			daily_avg_rating  %[1]s NOT NULL,
			rolling_7day_avg  %[1]s NOT NULL
		)`, d.floatType, d.dateType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS pipeline_runs (
			run_id      TEXT PRIMARY KEY,
			started_at  %[1]s NOT NULL,
			finished_at %[1]s NOT NULL,
			input_rows  INTEGER NOT NULL,
			retained    INTEGER NOT NULL,
			malformed   INTEGER NOT NULL,
			unmappable  INTEGER NOT NULL,
			invalid     INTEGER NOT NULL,
			duplicates  INTEGER NOT NULL,
			apps        INTEGER NOT NULL,
			days        INTEGER NOT NULL
		)`, d.tsType),
		`CREATE INDEX IF NOT EXISTS idx_app_reviews_app_id ON app_reviews(app_id)`,
		`CREATE INDEX IF NOT EXISTS idx_app_reviews_at     ON app_reviews(at)`,
	}
}

func (w *SQLWriter) migrate() error {
	for _, stmt := range w.schema() {
		if _, err := w.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteOutputs replaces every reconciled table and records the run inside
// one transaction.
func (w *SQLWriter) WriteOutputs(ctx context.Context, out *models.Outputs) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", w.dialect.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"app_level_kpis", "daily_metrics", "app_reviews", "apps_catalog"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("%s: clear %s: %w", w.dialect.name, table, err)
		}
	}

	d := w.dialect
	if out.Catalog != nil {
		rows := make([][]any, 0, out.Catalog.Len())
		for _, e := range out.Catalog.Entries {
			rows = append(rows, []any{e.AppID, e.Title, e.Developer, e.Genre, e.RatingScore, e.RatingsCount, e.Installs, e.Price})
		}
		if err := w.insertAll(ctx, tx, "apps_catalog", models.CatalogColumns, rows); err != nil {
			return err
		}
	}

	rows := make([][]any, 0, len(out.Reviews))
	for _, r := range out.Reviews {
		rows = append(rows, []any{r.AppID, r.AppName, r.ReviewID, r.UserName, r.Score, r.Content, r.ThumbsUpCount, d.timeValue(r.At)})
	}
	if err := w.insertAll(ctx, tx, "app_reviews", models.ReviewColumns, rows); err != nil {
		return err
	}

	rows = make([][]any, 0, len(out.AppKPIs))
	for _, k := range out.AppKPIs {
		rows = append(rows, []any{k.AppID, k.AppName, k.NumReviews, k.AvgRating, k.PctLowRating,
			d.timeValue(k.FirstReviewDate), d.timeValue(k.MostRecentReviewDate)})
	}
	if err := w.insertAll(ctx, tx, "app_level_kpis", models.AppKPIColumns, rows); err != nil {
		return err
	}

	rows = make([][]any, 0, len(out.Daily))
	for _, m := range out.Daily {
		rows = append(rows, []any{d.dateValue(m.Date), m.DailyNumReviews, m.DailyAvgRating, m.Rolling7DayAvg})
	}
	if err := w.insertAll(ctx, tx, "daily_metrics", models.DailyMetricColumns, rows); err != nil {
		return err
	}

	if r := out.Report; r != nil {
		runCols := []string{"run_id", "started_at", "finished_at", "input_rows", "retained", "malformed",
			"unmappable", "invalid", "duplicates", "apps", "days"}
		run := []any{r.RunID, d.timeValue(r.StartedAt), d.timeValue(r.FinishedAt), r.InputRows, r.Retained,
			r.Malformed, r.Unmappable, r.InvalidTotal(), r.Duplicates, r.Apps, r.Days}
		if err := w.insertAll(ctx, tx, "pipeline_runs", runCols, [][]any{run}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", w.dialect.name, err)
	}
	return nil
}

func (w *SQLWriter) insertAll(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]any) error {
	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := w.insertBatch(ctx, tx, table, cols, rows[i:end]); err != nil {
			return fmt.Errorf("%s: insert %s: %w", w.dialect.name, table, err)
		}
	}
	return nil
}

func (w *SQLWriter) insertBatch(ctx context.Context, tx *sql.Tx, table string, cols []string, batch [][]any) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*len(cols))

	n := 0
	for _, row := range batch {
		ph := make([]string, len(row))
		for i := range row {
			n++
			ph[i] = w.dialect.placeholder(n)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(cols, ", "), strings.Join(valueStrings, ","))

	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

// FetchAppKPIs reads back the stored KPI table ordered like the pipeline emits it.
func (w *SQLWriter) FetchAppKPIs(ctx context.Context) ([]*models.AppKPI, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT app_id, app_name, num_reviews, avg_rating, pct_low_rating,
		       first_review_date, most_recent_review_date
		FROM app_level_kpis
		ORDER BY app_id, app_name
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch kpis: %w", w.dialect.name, err)
	}
	defer rows.Close()

	var kpis []*models.AppKPI
	for rows.Next() {
		k := &models.AppKPI{}
		var first, last string
		if err := rows.Scan(&k.AppID, &k.AppName, &k.NumReviews, &k.AvgRating, &k.PctLowRating, &first, &last); err != nil {
			return nil, fmt.Errorf("%s: scan kpi: %w", w.dialect.name, err)
		}
		if k.FirstReviewDate, err = parseStoredTime(first); err != nil {
			return nil, fmt.Errorf("%s: kpi first_review_date: %w", w.dialect.name, err)
		}
		if k.MostRecentReviewDate, err = parseStoredTime(last); err != nil {
			return nil, fmt.Errorf("%s: kpi most_recent_review_date: %w", w.dialect.name, err)
		}
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// FetchDaily reads back the stored daily series in ascending date order.
func (w *SQLWriter) FetchDaily(ctx context.Context) ([]*models.DailyMetric, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT date, daily_num_reviews, daily_avg_rating, rolling_7day_avg
		FROM daily_metrics
		ORDER BY date
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch daily: %w", w.dialect.name, err)
	}
	defer rows.Close()

	var series []*models.DailyMetric
	for rows.Next() {
		m := &models.DailyMetric{}
		var date string
		if err := rows.Scan(&date, &m.DailyNumReviews, &m.DailyAvgRating, &m.Rolling7DayAvg); err != nil {
			return nil, fmt.Errorf("%s: scan daily: %w", w.dialect.name, err)
		}
		if m.Date, err = parseStoredTime(date); err != nil {
			return nil, fmt.Errorf("%s: daily date: %w", w.dialect.name, err)
		}
		series = append(series, m)
	}
	return series, rows.Err()
}

func (w *SQLWriter) Close() error {
	return w.db.Close()
}
