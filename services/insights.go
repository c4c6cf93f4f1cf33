package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"app-reviews-pipeline/models"
	"app-reviews-pipeline/utils"
)

// RollingWindow is the number of series rows averaged by Rolling7DayAvg.
const RollingWindow = 7

// LowRatingMax is the highest score counted as a low rating.
const LowRatingMax = 2

// InsightService derives the aggregate tables from reconciled reviews. It
// never modifies its input.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

type appKey struct {
	appID   string
	appName string
}

type appAcc struct {
	count int64
	sum   int64
	low   int64
	first time.Time
	last  time.Time
}

// AppKPIs groups reviews by (app_id, app_name). Reviews without an app_id
// form no group. Output is sorted by app_id, then app_name.
func (s *InsightService) AppKPIs(reviews []*models.CanonicalReview) []*models.AppKPI {
	groups := make(map[appKey]*appAcc)
	for _, r := range reviews {
		if r.AppID == "" {
			continue
		}
		k := appKey{r.AppID, r.AppName}
		acc, ok := groups[k]
		if !ok {
			acc = &appAcc{first: r.At, last: r.At}
			groups[k] = acc
		}
		acc.count++
		acc.sum += int64(r.Score)
		if r.Score <= LowRatingMax {
			acc.low++
		}
		if r.At.Before(acc.first) {
			acc.first = r.At
		}
		if r.At.After(acc.last) {
			acc.last = r.At
		}
	}

	kpis := make([]*models.AppKPI, 0, len(groups))
	for k, acc := range groups {
		kpis = append(kpis, &models.AppKPI{
			AppID:                k.appID,
			AppName:              k.appName,
			NumReviews:           int(acc.count),
			AvgRating:            mean2(acc.sum, acc.count),
			PctLowRating:         mean2(acc.low*100, acc.count),
			FirstReviewDate:      acc.first,
			MostRecentReviewDate: acc.last,
		})
	}
	sort.Slice(kpis, func(i, j int) bool {
		if kpis[i].AppID != kpis[j].AppID {
			return kpis[i].AppID < kpis[j].AppID
		}
		return kpis[i].AppName < kpis[j].AppName
	})

	s.logger.Info("[insights] App KPIs computed for %d apps", len(kpis))
	return kpis
}

// DailyMetrics groups reviews by calendar date, sorted ascending, and adds
// a trailing mean of daily_avg_rating over up to RollingWindow rows of the
// series. Dates with no reviews have no row and are not counted in a window.
func (s *InsightService) DailyMetrics(reviews []*models.CanonicalReview) []*models.DailyMetric {
	type dayAcc struct{ count, sum int64 }
	days := make(map[time.Time]*dayAcc)
	for _, r := range reviews {
		d := truncateToDate(r.At)
		acc, ok := days[d]
		if !ok {
			acc = &dayAcc{}
			days[d] = acc
		}
		acc.count++
		acc.sum += int64(r.Score)
	}

	series := make([]*models.DailyMetric, 0, len(days))
	for d, acc := range days {
		series = append(series, &models.DailyMetric{
			Date:            d,
			DailyNumReviews: int(acc.count),
			DailyAvgRating:  mean2(acc.sum, acc.count),
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	applyRolling(series, RollingWindow)

	s.logger.Info("[insights] Daily metrics computed for %d days", len(series))
	return series
}

// applyRolling fills Rolling7DayAvg with the mean of the current and up to
// window-1 preceding rows. The window shrinks at the start of the series.
func applyRolling(series []*models.DailyMetric, window int) {
	sum := decimal.Zero
	for i, m := range series {
		sum = sum.Add(decimal.NewFromFloat(m.DailyAvgRating))
		if i >= window {
			sum = sum.Sub(decimal.NewFromFloat(series[i-window].DailyAvgRating))
		}
		n := i + 1
		if n > window {
			n = window
		}
		m.Rolling7DayAvg = sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	}
}

// Summary computes the overview figures and best/worst apps.
func (s *InsightService) Summary(kpis []*models.AppKPI, daily []*models.DailyMetric) *models.InsightSummary {
	sum := &models.InsightSummary{TotalApps: len(kpis)}
	if len(kpis) > 0 {
		total := decimal.Zero
		for _, k := range kpis {
			sum.TotalReviews += k.NumReviews
			total = total.Add(decimal.NewFromFloat(k.AvgRating))
		}
		sum.OverallRating = round2(total.Div(decimal.NewFromInt(int64(len(kpis)))))
	}
	if len(daily) > 0 {
		sum.FirstDate = daily[0].Date
		sum.LastDate = daily[len(daily)-1].Date
	}

	ranked := make([]*models.AppKPI, len(kpis))
	copy(ranked, kpis)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AvgRating != ranked[j].AvgRating {
			return ranked[i].AvgRating > ranked[j].AvgRating
		}
		return ranked[i].AppID < ranked[j].AppID
	})

	const n = 5
	if len(ranked) > n {
		sum.TopRated = ranked[:n]
		sum.BottomRated = ranked[len(ranked)-n:]
	} else {
		sum.TopRated = ranked
		sum.BottomRated = ranked
	}
	return sum
}

// mean2 returns num/den rounded to two places, half away from zero.
func mean2(num, den int64) float64 {
	return round2(decimal.NewFromInt(num).Div(decimal.NewFromInt(den)))
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
