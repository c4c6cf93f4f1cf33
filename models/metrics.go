package models

import "time"

// AppKPI holds per-application aggregates.
type AppKPI struct {
	AppID                string
	AppName              string
	NumReviews           int
	AvgRating            float64
	PctLowRating         float64
	FirstReviewDate      time.Time
	MostRecentReviewDate time.Time
}

// AppKPIColumns is the stable output column order for AppKPI.
var AppKPIColumns = []string{
	"app_id",
	"app_name",
	"num_reviews",
	"avg_rating",
	"pct_low_rating",
	"first_review_date",
	"most_recent_review_date",
}

// DailyMetric holds the aggregates for one calendar date.
type DailyMetric struct {
	Date            time.Time
	DailyNumReviews int
	DailyAvgRating  float64
	Rolling7DayAvg  float64
}

// DailyMetricColumns is the stable output column order for DailyMetric.
var DailyMetricColumns = []string{
	"date",
	"daily_num_reviews",
	"daily_avg_rating",
	"rolling_7day_avg",
}

// Outputs bundles everything one run produces. The two derived tables are
// always written together.
type Outputs struct {
	Catalog *Catalog
	Reviews []*CanonicalReview
	AppKPIs []*AppKPI
	Daily   []*DailyMetric
	Report  *RunReport
}

// InsightSummary holds the overview figures shown next to the tables.
type InsightSummary struct {
	TotalApps     int
	TotalReviews  int
	OverallRating float64
	FirstDate     time.Time
	LastDate      time.Time
	TopRated      []*AppKPI
	BottomRated   []*AppKPI
}
