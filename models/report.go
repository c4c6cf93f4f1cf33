package models

import "time"

// Reasons a decoded review row fails validity.
const (
	InvalidBadTimestamp    = "bad_timestamp"
	InvalidBadScore        = "bad_score"
	InvalidMissingReviewID = "missing_review_id"
)

// SourceStats describes what one configured source contributed.
type SourceStats struct {
	Name       string
	Path       string
	Format     string
	Skipped    bool   // missing, unreadable or empty
	SkipReason string // set when Skipped
	Rows       int    // decoded raw rows
	Malformed  int    // units the reader could not decode
	Unmappable int    // rows with no known field
}

// RunReport carries the row accounting for one pipeline run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Catalog           SourceStats
	CatalogRows       int
	CatalogDuplicates int
	CatalogMissingID  int

	Sources    []SourceStats
	InputRows  int
	Malformed  int
	Unmappable int
	Invalid    map[string]int
	Duplicates int
	Retained   int

	Apps int
	Days int
}

// NewRunReport returns an empty report with its maps allocated.
func NewRunReport(runID string, started time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		StartedAt: started,
		Invalid:   make(map[string]int),
	}
}

// InvalidTotal sums the invalid counters over every reason.
func (r *RunReport) InvalidTotal() int {
	total := 0
	for _, n := range r.Invalid {
		total += n
	}
	return total
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
