package storage

import (
	"context"

	"app-reviews-pipeline/models"
)

// OutputWriter is the interface any sink of a pipeline run must satisfy.
// WriteOutputs either stores every table of out or none of them.
type OutputWriter interface {
	WriteOutputs(ctx context.Context, out *models.Outputs) error
	Close() error
}

// RawWriter persists acquisition output for later pipeline runs.
type RawWriter interface {
	WriteApps(apps []*models.RawApp) error
	WriteReviews(reviews []*models.RawReview) error
	Close() error
}
