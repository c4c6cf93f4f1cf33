package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"app-reviews-pipeline/models"
)

// Parquet output file names inside the output directory.
const (
	AppKPIsParquetFile = "app_level_kpis.parquet"
	DailyParquetFile   = "daily_metrics.parquet"
)

type kpiParquetRow struct {
	AppID                string    `parquet:"app_id"`
	AppName              string    `parquet:"app_name"`
	NumReviews           int64     `parquet:"num_reviews"`
	AvgRating            float64   `parquet:"avg_rating"`
	PctLowRating         float64   `parquet:"pct_low_rating"`
	FirstReviewDate      time.Time `parquet:"first_review_date,timestamp"`
	MostRecentReviewDate time.Time `parquet:"most_recent_review_date,timestamp"`
}

type dailyParquetRow struct {
	Date            string  `parquet:"date"`
	DailyNumReviews int64   `parquet:"daily_num_reviews"`
	DailyAvgRating  float64 `parquet:"daily_avg_rating"`
	Rolling7DayAvg  float64 `parquet:"rolling_7day_avg"`
}

// ParquetWriter writes the two derived tables as Parquet files, with the
// same column names as the CSV output.
type ParquetWriter struct {
	dir string
}

// NewParquetWriter creates the output directory if needed.
func NewParquetWriter(dir string) (*ParquetWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("parquet: create output dir: %w", err)
	}
	return &ParquetWriter{dir: dir}, nil
}

// WriteOutputs writes both files to temp names, then renames them together.
func (p *ParquetWriter) WriteOutputs(_ context.Context, out *models.Outputs) error {
	kpis := make([]kpiParquetRow, 0, len(out.AppKPIs))
	for _, k := range out.AppKPIs {
		kpis = append(kpis, kpiParquetRow{
			AppID:                k.AppID,
			AppName:              k.AppName,
			NumReviews:           int64(k.NumReviews),
			AvgRating:            k.AvgRating,
			PctLowRating:         k.PctLowRating,
			FirstReviewDate:      k.FirstReviewDate,
			MostRecentReviewDate: k.MostRecentReviewDate,
		})
	}
	daily := make([]dailyParquetRow, 0, len(out.Daily))
	for _, d := range out.Daily {
		daily = append(daily, dailyParquetRow{
			Date:            d.Date.Format(dateLayout),
			DailyNumReviews: int64(d.DailyNumReviews),
			DailyAvgRating:  d.DailyAvgRating,
			Rolling7DayAvg:  d.Rolling7DayAvg,
		})
	}

	kpiTmp := filepath.Join(p.dir, tmpFilePrefix+AppKPIsParquetFile)
	dailyTmp := filepath.Join(p.dir, tmpFilePrefix+DailyParquetFile)
	cleanup := func() {
		_ = os.Remove(kpiTmp)
		_ = os.Remove(dailyTmp)
	}

	if err := parquet.WriteFile(kpiTmp, kpis); err != nil {
		cleanup()
		return fmt.Errorf("parquet: write kpis: %w", err)
	}
	if err := parquet.WriteFile(dailyTmp, daily); err != nil {
		cleanup()
		return fmt.Errorf("parquet: write daily: %w", err)
	}

	if err := os.Rename(kpiTmp, filepath.Join(p.dir, AppKPIsParquetFile)); err != nil {
		cleanup()
		return fmt.Errorf("parquet: commit kpis: %w", err)
	}
	if err := os.Rename(dailyTmp, filepath.Join(p.dir, DailyParquetFile)); err != nil {
		cleanup()
		return fmt.Errorf("parquet: commit daily: %w", err)
	}
	return nil
}

func (p *ParquetWriter) Close() error {
	return nil
}
