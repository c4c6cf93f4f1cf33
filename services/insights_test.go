package services

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"app-reviews-pipeline/models"
)

func day(d int, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func sampleReviews() []*models.CanonicalReview {
	return []*models.CanonicalReview{
		{AppID: "com.a", AppName: "Notes AI", ReviewID: "1", Score: 1, At: day(1, 9)},
		{AppID: "com.a", AppName: "Notes AI", ReviewID: "2", Score: 1, At: day(2, 9)},
		{AppID: "com.a", AppName: "Notes AI", ReviewID: "3", Score: 2, At: day(2, 18)},
		{AppID: "com.a", AppName: "Notes AI", ReviewID: "4", Score: 5, At: day(5, 7)},
		{AppID: "com.b", AppName: "Scribe", ReviewID: "5", Score: 4, At: day(1, 12)},
		{AppID: "com.b", AppName: "Scribe", ReviewID: "6", Score: 5, At: day(5, 23)},
		{AppName: "unknown", ReviewID: "7", Score: 3, At: day(5, 1)},
	}
}

func TestAppKPIsScenario(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	kpis := svc.AppKPIs(sampleReviews())

	if len(kpis) != 2 {
		t.Fatalf("apps = %d; want 2 (reviews without app_id form no group)", len(kpis))
	}
	a := kpis[0]
	if a.AppID != "com.a" || a.NumReviews != 4 {
		t.Fatalf("kpis[0] = %+v; want com.a with 4 reviews", a)
	}
	if a.AvgRating != 2.25 {
		t.Errorf("avg_rating = %v; want 2.25", a.AvgRating)
	}
	if a.PctLowRating != 75.0 {
		t.Errorf("pct_low_rating = %v; want 75.0", a.PctLowRating)
	}
	if !a.FirstReviewDate.Equal(day(1, 9)) || !a.MostRecentReviewDate.Equal(day(5, 7)) {
		t.Errorf("date range = %v..%v; want %v..%v", a.FirstReviewDate, a.MostRecentReviewDate, day(1, 9), day(5, 7))
	}
}

func TestAppKPIsRounding(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	reviews := []*models.CanonicalReview{
		{AppID: "x", ReviewID: "1", Score: 1, At: day(1, 0)},
		{AppID: "x", ReviewID: "2", Score: 2, At: day(1, 0)},
		{AppID: "x", ReviewID: "3", Score: 2, At: day(1, 0)},
	}
	k := svc.AppKPIs(reviews)[0]
	if k.AvgRating != 1.67 {
		t.Errorf("avg_rating = %v; want 1.67", k.AvgRating)
	}
	if k.PctLowRating != 100 {
		t.Errorf("pct_low_rating = %v; want 100", k.PctLowRating)
	}

	// 1/8 = 0.125 rounds half away from zero.
	if got := mean2(1, 8); got != 0.13 {
		t.Errorf("mean2(1, 8) = %v; want 0.13", got)
	}
}

func TestDailyMetricsSortedAndCounted(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	reviews := sampleReviews()
	daily := svc.DailyMetrics(reviews)

	if len(daily) != 3 {
		t.Fatalf("days = %d; want 3", len(daily))
	}
	total := 0
	for i, d := range daily {
		total += d.DailyNumReviews
		if i > 0 && !daily[i-1].Date.Before(d.Date) {
			t.Errorf("series not ascending at %d", i)
		}
		if d.Date.Hour() != 0 || d.Date.Minute() != 0 {
			t.Errorf("date %v not truncated", d.Date)
		}
	}
	if total != len(reviews) {
		t.Errorf("sum(daily_num_reviews) = %d; want %d", total, len(reviews))
	}
	if daily[0].DailyAvgRating != 2.5 {
		t.Errorf("day 1 avg = %v; want 2.5", daily[0].DailyAvgRating)
	}
	if daily[2].DailyNumReviews != 3 || daily[2].DailyAvgRating != 4.33 {
		t.Errorf("day 5 = %+v; want 3 reviews avg 4.33", daily[2])
	}
}

func TestRollingWindowOverPresentRows(t *testing.T) {
	series := make([]*models.DailyMetric, 10)
	for i := range series {
		// Sparse dates: every third calendar day.
		series[i] = &models.DailyMetric{
			Date:           time.Date(2024, 1, 1+3*i, 0, 0, 0, 0, time.UTC),
			DailyAvgRating: float64(i + 1),
		}
	}

	applyRolling(series, RollingWindow)

	mean := func(from, to int) float64 {
		s := 0.0
		for v := from; v <= to; v++ {
			s += float64(v)
		}
		return s / float64(to-from+1)
	}
	tests := []struct {
		point int
		want  float64
	}{
		{1, mean(1, 1)},
		{3, mean(1, 3)},
		{7, mean(1, 7)},
		{8, mean(2, 8)},
		{10, mean(4, 10)},
	}
	for _, tt := range tests {
		got := series[tt.point-1].Rolling7DayAvg
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("point %d rolling = %v; want %v", tt.point, got, tt.want)
		}
	}
}

func TestAggregationDoesNotMutateInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	reviews := sampleReviews()
	before := *reviews[0]

	svc.AppKPIs(reviews)
	svc.DailyMetrics(reviews)

	if *reviews[0] != before {
		t.Errorf("review mutated: %+v -> %+v", before, *reviews[0])
	}
}

func TestSummary(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	reviews := sampleReviews()
	kpis := svc.AppKPIs(reviews)
	daily := svc.DailyMetrics(reviews)

	sum := svc.Summary(kpis, daily)
	if sum.TotalApps != 2 || sum.TotalReviews != 6 {
		t.Errorf("totals = %d apps / %d reviews; want 2 / 6", sum.TotalApps, sum.TotalReviews)
	}
	// mean(2.25, 4.5)
	if sum.OverallRating != 3.38 {
		t.Errorf("overall = %v; want 3.38", sum.OverallRating)
	}
	if sum.TopRated[0].AppID != "com.b" {
		t.Errorf("top rated = %s; want com.b", sum.TopRated[0].AppID)
	}
	if !sum.FirstDate.Equal(day(1, 0)) || !sum.LastDate.Equal(day(5, 0)) {
		t.Errorf("date range = %v..%v", sum.FirstDate, sum.LastDate)
	}
}

func TestSummaryEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	sum := svc.Summary(nil, nil)
	if sum.TotalApps != 0 || sum.OverallRating != 0 || !sum.FirstDate.IsZero() {
		t.Errorf("expected zero summary, got %+v", sum)
	}
}

func TestPrintIncludesCounters(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	reviews := sampleReviews()
	out := &models.Outputs{
		Reviews: reviews,
		AppKPIs: svc.AppKPIs(reviews),
		Daily:   svc.DailyMetrics(reviews),
		Report:  models.NewRunReport("run-1", time.Now()),
	}
	out.Report.Invalid[models.InvalidBadScore] = 2
	out.Report.Duplicates = 1

	var buf bytes.Buffer
	svc.Print(&buf, out, svc.Summary(out.AppKPIs, out.Daily))

	text := buf.String()
	for _, want := range []string{"run-1", "bad_score", "Dropped duplicate : 1", "Notes AI", "2024-03-05"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}
}
