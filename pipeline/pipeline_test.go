package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"app-reviews-pipeline/config"
	"app-reviews-pipeline/models"
	"app-reviews-pipeline/services"
	"app-reviews-pipeline/storage"
	"app-reviews-pipeline/utils"
)

const catalogJSON = `[
  {"appId": "com.alpha", "title": "Alpha", "installs": "10,000+", "price": "Free", "score": 4.1},
  {"appId": "com.beta", "title": "Beta", "installs": "500+", "price": "$1.99"},
  {"appId": "com.alpha", "title": "Alpha Duplicate"}
]`

// Tabular source with non-canonical column names, declared first.
const batchCSV = `appId,rating,review_time,review_id
com.alpha,5,2024-01-01 09:00:00,r1
com.alpha,1,2024-01-01 12:00:00,r2
com.alpha,6,2024-01-02 10:00:00,r3
com.alpha,4,not-a-date,r4
com.beta,3,01/03/2024,r5
`

// Line-delimited source with canonical names.
const playJSONL = `{"app_id":"com.alpha","review_id":"r1","score":2,"at":"2024-01-02T08:00:00Z"}
{"app_id":"com.alpha","review_id":"r6","score":1,"at":"2024-01-02T10:00:00Z","thumbs_up_count":"n/a"}
{"app_id":"com.alpha","review_id":"r7","score":2,"at":"2024-01-03T10:00:00+02:00"}
{"app_id":"com.gamma","app_name":"Gamma From Source","review_id":"r8","score":4,"at":"2024-01-03T11:00:00Z"}
{"app_id":"com.delta","review_id":"r9","score":5,"at":"2024-01-04T11:00:00Z"}
this line is broken
{"nothing":"known"}
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixtureConfig(t *testing.T) *config.Pipeline {
	t.Helper()
	dir := t.TempDir()
	return &config.Pipeline{
		Catalog: config.SourceConfig{Name: "meta", Path: writeFile(t, dir, "apps_metadata.json", catalogJSON), Format: config.FormatJSON},
		Reviews: []config.SourceConfig{
			{Name: "batch", Path: writeFile(t, dir, "reviews_batch.csv", batchCSV), Format: config.FormatCSV},
			{Name: "play", Path: writeFile(t, dir, "apps_reviews.jsonl", playJSONL), Format: config.FormatJSONL},
			{Name: "gone", Path: filepath.Join(dir, "missing.csv"), Format: config.FormatCSV},
		},
		Output:  config.OutputConfig{Dir: filepath.Join(dir, "out"), Formats: []string{config.OutputCSV}},
		Workers: 2,
	}
}

func run(t *testing.T, cfg *config.Pipeline) *models.Outputs {
	t.Helper()
	out, err := New(cfg, utils.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

func reviewByID(out *models.Outputs, id string) *models.CanonicalReview {
	for _, r := range out.Reviews {
		if r.ReviewID == id {
			return r
		}
	}
	return nil
}

func kpiByApp(out *models.Outputs, appID string) *models.AppKPI {
	for _, k := range out.AppKPIs {
		if k.AppID == appID {
			return k
		}
	}
	return nil
}

func TestRunReportCounts(t *testing.T) {
	out := run(t, fixtureConfig(t))
	r := out.Report

	if r.RunID == "" {
		t.Error("run id not set")
	}
	if r.InputRows != 11 {
		t.Errorf("InputRows = %d; want 11", r.InputRows)
	}
	if r.Malformed != 1 {
		t.Errorf("Malformed = %d; want 1", r.Malformed)
	}
	if r.Unmappable != 1 {
		t.Errorf("Unmappable = %d; want 1", r.Unmappable)
	}
	if r.Invalid[models.InvalidBadScore] != 1 || r.Invalid[models.InvalidBadTimestamp] != 1 {
		t.Errorf("Invalid = %v; want one bad_score and one bad_timestamp", r.Invalid)
	}
	if r.Duplicates != 1 {
		t.Errorf("Duplicates = %d; want 1", r.Duplicates)
	}
	if r.Retained != 7 {
		t.Errorf("Retained = %d; want 7", r.Retained)
	}
	if r.CatalogRows != 2 || r.CatalogDuplicates != 1 {
		t.Errorf("catalog rows=%d dups=%d; want 2 and 1", r.CatalogRows, r.CatalogDuplicates)
	}
	if len(r.Sources) != 3 || !r.Sources[2].Skipped || r.Sources[2].SkipReason != "missing" {
		t.Errorf("missing source not reported as skipped: %+v", r.Sources)
	}
}

func TestFirstDeclaredSourceWinsDuplicate(t *testing.T) {
	out := run(t, fixtureConfig(t))
	r1 := reviewByID(out, "r1")
	if r1 == nil {
		t.Fatal("r1 missing")
	}
	if r1.Score != 5 {
		t.Errorf("r1 score = %d; want 5 from the first declared source", r1.Score)
	}
	if r1.Source != "batch" {
		t.Errorf("r1 source = %s; want batch", r1.Source)
	}
}

func TestInvalidRowsExcluded(t *testing.T) {
	out := run(t, fixtureConfig(t))
	for _, id := range []string{"r3", "r4"} {
		if reviewByID(out, id) != nil {
			t.Errorf("%s should have been excluded", id)
		}
	}
}

func TestReconciledTableInvariants(t *testing.T) {
	out := run(t, fixtureConfig(t))

	seen := make(map[string]bool)
	perApp := make(map[string]int)
	for _, r := range out.Reviews {
		if seen[r.ReviewID] {
			t.Errorf("duplicate review_id %s", r.ReviewID)
		}
		seen[r.ReviewID] = true
		if r.Score < 1 || r.Score > 5 {
			t.Errorf("review %s score %d out of range", r.ReviewID, r.Score)
		}
		if r.AppName == "" {
			t.Errorf("review %s has empty app_name", r.ReviewID)
		}
		perApp[r.AppID]++
	}

	for _, k := range out.AppKPIs {
		if k.NumReviews != perApp[k.AppID] {
			t.Errorf("%s num_reviews = %d; want %d", k.AppID, k.NumReviews, perApp[k.AppID])
		}
	}

	total := 0
	for i, d := range out.Daily {
		total += d.DailyNumReviews
		if i > 0 && !out.Daily[i-1].Date.Before(d.Date) {
			t.Errorf("daily series not ascending at %d", i)
		}
	}
	if total != len(out.Reviews) {
		t.Errorf("sum(daily_num_reviews) = %d; want %d", total, len(out.Reviews))
	}
}

func TestEnrichmentFallback(t *testing.T) {
	out := run(t, fixtureConfig(t))

	tests := []struct {
		id   string
		want string
	}{
		{"r1", "Alpha"},
		{"r5", "Beta"},
		{"r8", "Gamma From Source"},
		{"r9", services.UnknownAppName},
	}
	for _, tt := range tests {
		r := reviewByID(out, tt.id)
		if r == nil {
			t.Errorf("%s missing", tt.id)
			continue
		}
		if r.AppName != tt.want {
			t.Errorf("%s app_name = %q; want %q", tt.id, r.AppName, tt.want)
		}
	}
}

func TestAppKPIScenario(t *testing.T) {
	out := run(t, fixtureConfig(t))
	// com.alpha keeps r1(5), r2(1), r6(1), r7(2).
	k := kpiByApp(out, "com.alpha")
	if k == nil {
		t.Fatal("com.alpha KPI missing")
	}
	if k.NumReviews != 4 || k.AvgRating != 2.25 || k.PctLowRating != 75.0 {
		t.Errorf("com.alpha = %d reviews, avg %v, low %v; want 4, 2.25, 75", k.NumReviews, k.AvgRating, k.PctLowRating)
	}
	if got := k.MostRecentReviewDate.Format("2006-01-02 15:04:05"); got != "2024-01-03 08:00:00" {
		t.Errorf("most recent = %s; want offset converted to UTC", got)
	}
	if r6 := reviewByID(out, "r6"); r6 == nil || r6.ThumbsUpCount != 0 {
		t.Errorf("unparsable thumbs up should default to 0: %+v", r6)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := fixtureConfig(t)
	var outputs [2][]byte
	var daily [2][]byte

	for i := range outputs {
		dir := filepath.Join(t.TempDir(), "out")
		w, err := storage.NewCSVWriter(dir)
		if err != nil {
			t.Fatal(err)
		}
		if err := Publish(context.Background(), run(t, cfg), w); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		if outputs[i], err = os.ReadFile(filepath.Join(dir, storage.AppKPIsFile)); err != nil {
			t.Fatal(err)
		}
		if daily[i], err = os.ReadFile(filepath.Join(dir, storage.DailyFile)); err != nil {
			t.Fatal(err)
		}
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("app KPI table differs between identical runs")
	}
	if !bytes.Equal(daily[0], daily[1]) {
		t.Error("daily metrics table differs between identical runs")
	}
}

func TestRunWithoutCatalog(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Catalog = config.SourceConfig{}

	out := run(t, cfg)
	if !out.Report.Catalog.Skipped {
		t.Error("catalog should be reported as skipped")
	}
	if r := reviewByID(out, "r1"); r == nil || r.AppName != services.UnknownAppName {
		t.Errorf("r1 app_name without catalog = %+v; want sentinel", r)
	}
}

func TestNoUsableSource(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Pipeline{
		Reviews: []config.SourceConfig{
			{Name: "a", Path: filepath.Join(dir, "a.csv"), Format: config.FormatCSV},
			{Name: "b", Path: writeFile(t, dir, "b.jsonl", "\n\n"), Format: config.FormatJSONL},
		},
		Workers: 1,
	}

	out, err := New(cfg, utils.NewNop()).Run(context.Background())
	if !errors.Is(err, ErrNoUsableSource) {
		t.Fatalf("err = %v; want ErrNoUsableSource", err)
	}
	if out != nil {
		t.Error("no outputs expected on fatal error")
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(fixtureConfig(t), utils.NewNop()).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
}

type failingSink struct{ calls int }

func (f *failingSink) WriteOutputs(context.Context, *models.Outputs) error {
	f.calls++
	return errors.New("disk full")
}

func (f *failingSink) Close() error { return nil }

func TestPublishStopsAtFirstFailure(t *testing.T) {
	first, second := &failingSink{}, &failingSink{}
	if err := Publish(context.Background(), &models.Outputs{}, first, second); err == nil {
		t.Fatal("expected error")
	}
	if first.calls != 1 || second.calls != 0 {
		t.Errorf("calls = %d, %d; want 1, 0", first.calls, second.calls)
	}
}
