package storage

import (
	"strconv"
	"strings"
	"time"

	"app-reviews-pipeline/models"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

// formatFloat prints the shortest exact form, always with a decimal point.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func formatOptString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatOptInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func kpiRecord(k *models.AppKPI) []string {
	return []string{
		k.AppID,
		k.AppName,
		strconv.Itoa(k.NumReviews),
		formatFloat(k.AvgRating),
		formatFloat(k.PctLowRating),
		k.FirstReviewDate.Format(timestampLayout),
		k.MostRecentReviewDate.Format(timestampLayout),
	}
}

func dailyRecord(d *models.DailyMetric) []string {
	return []string{
		d.Date.Format(dateLayout),
		strconv.Itoa(d.DailyNumReviews),
		formatFloat(d.DailyAvgRating),
		formatFloat(d.Rolling7DayAvg),
	}
}

func reviewRecord(r *models.CanonicalReview) []string {
	return []string{
		r.AppID,
		r.AppName,
		r.ReviewID,
		formatOptString(r.UserName),
		strconv.Itoa(r.Score),
		formatOptString(r.Content),
		strconv.Itoa(r.ThumbsUpCount),
		r.At.Format(timestampLayout),
	}
}

func catalogRecord(e *models.CatalogEntry) []string {
	return []string{
		e.AppID,
		e.Title,
		formatOptString(e.Developer),
		formatOptString(e.Genre),
		formatOptFloat(e.RatingScore),
		formatOptInt(e.RatingsCount),
		formatOptInt(e.Installs),
		formatFloat(e.Price),
	}
}

// parseStoredTime reads timestamps back from a database column, whichever
// textual form the driver produced.
func parseStoredTime(s string) (time.Time, error) {
	var err error
	for _, layout := range []string{time.RFC3339Nano, timestampLayout, dateLayout, "2006-01-02 15:04:05.999999999 -0700 MST"} {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
