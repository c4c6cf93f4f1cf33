package models

import "time"

// Canonical field names shared by every review source after normalization.
const (
	FieldAppID         = "app_id"
	FieldAppName       = "app_name"
	FieldReviewID      = "review_id"
	FieldUserName      = "user_name"
	FieldScore         = "score"
	FieldContent       = "content"
	FieldThumbsUpCount = "thumbs_up_count"
	FieldAt            = "at"
)

// ReviewColumns is the canonical review column order.
var ReviewColumns = []string{
	FieldAppID,
	FieldAppName,
	FieldReviewID,
	FieldUserName,
	FieldScore,
	FieldContent,
	FieldThumbsUpCount,
	FieldAt,
}

// Canonical catalog field names.
const (
	FieldTitle        = "title"
	FieldDeveloper    = "developer"
	FieldGenre        = "genre"
	FieldRatingScore  = "rating_score"
	FieldRatingsCount = "ratings_count"
	FieldInstalls     = "installs"
	FieldPrice        = "price"
)

// CatalogColumns is the canonical catalog column order.
var CatalogColumns = []string{
	FieldAppID,
	FieldTitle,
	FieldDeveloper,
	FieldGenre,
	FieldRatingScore,
	FieldRatingsCount,
	FieldInstalls,
	FieldPrice,
}

// Row is a normalized row: only canonical keys, nil meaning null.
type Row struct {
	Source string
	Line   int
	Values map[string]any
}

// Get returns the value of a canonical column, nil when absent.
func (r Row) Get(col string) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[col]
}

// Table is the merged working table handed between stages.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// CanonicalReview is one reconciled review.
type CanonicalReview struct {
	AppID         string
	AppName       string
	ReviewID      string
	UserName      *string
	Score         int
	Content       *string
	ThumbsUpCount int
	At            time.Time
	Source        string
}
