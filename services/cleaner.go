package services

import (
	"app-reviews-pipeline/models"
	"app-reviews-pipeline/utils"
)

// Cleaner turns the merged working table into valid, unique CanonicalReviews.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// CleanResult is the reconciled review table plus what was dropped on the way.
type CleanResult struct {
	Reviews    []*models.CanonicalReview
	Invalid    map[string]int
	Duplicates int
}

// InvalidTotal sums the invalid counters.
func (r *CleanResult) InvalidTotal() int {
	n := 0
	for _, c := range r.Invalid {
		n += c
	}
	return n
}

// Clean applies the validity predicate, then keeps the first occurrence of
// every review id in table order. Rows are never coerced into validity.
func (c *Cleaner) Clean(t *models.Table) *CleanResult {
	res := &CleanResult{
		Reviews: make([]*models.CanonicalReview, 0, t.Len()),
		Invalid: make(map[string]int),
	}
	seen := utils.NewKeySet()

	for _, r := range t.Rows {
		review, reason := toReview(r)
		if reason != "" {
			res.Invalid[reason]++
			c.logger.Debug("[cleaner] Dropping %s:%d (%s)", r.Source, r.Line, reason)
			continue
		}

		if !seen.Add(review.ReviewID) {
			res.Duplicates++
			c.logger.Debug("[cleaner] Duplicate review id skipped: %s (%s:%d)",
				review.ReviewID, r.Source, r.Line)
			continue
		}

		res.Reviews = append(res.Reviews, review)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d reviews (invalid %d, duplicates %d)",
		t.Len(), len(res.Reviews), res.InvalidTotal(), res.Duplicates)
	return res
}

// toReview converts one normalized row, or names the reason it is invalid.
// AppName carries the source-supplied name until the enrichment join runs.
func toReview(r models.Row) (*models.CanonicalReview, string) {
	at, ok := parseTimestamp(r.Get(models.FieldAt))
	if !ok {
		return nil, models.InvalidBadTimestamp
	}
	score, ok := parseScore(r.Get(models.FieldScore))
	if !ok {
		return nil, models.InvalidBadScore
	}
	reviewID, ok := asString(r.Get(models.FieldReviewID))
	if !ok {
		return nil, models.InvalidMissingReviewID
	}

	review := &models.CanonicalReview{
		ReviewID:      reviewID,
		Score:         score,
		At:            at,
		ThumbsUpCount: parseThumbsUp(r.Get(models.FieldThumbsUpCount)),
		UserName:      optString(r.Get(models.FieldUserName)),
		Content:       optString(r.Get(models.FieldContent)),
		Source:        r.Source,
	}
	if s, ok := asString(r.Get(models.FieldAppID)); ok {
		review.AppID = s
	}
	if s, ok := asString(r.Get(models.FieldAppName)); ok {
		review.AppName = s
	}
	return review, ""
}
