package services

import (
	"app-reviews-pipeline/models"
	"app-reviews-pipeline/utils"
)

// UnknownAppName is used when neither the catalog nor the source names an app.
const UnknownAppName = "unknown"

// EnrichStats counts how each review's app_name was resolved.
type EnrichStats struct {
	FromCatalog int
	FromSource  int
	Unknown     int
}

// Enricher resolves app_name through a left join on app_id.
type Enricher struct {
	logger *utils.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(logger *utils.Logger) *Enricher {
	return &Enricher{logger: logger}
}

// Enrich sets AppName on every review: the catalog title when a matching
// entry has one, else the name the source supplied, else UnknownAppName.
// Rows are neither dropped nor duplicated.
func (e *Enricher) Enrich(reviews []*models.CanonicalReview, catalog *models.Catalog) EnrichStats {
	var stats EnrichStats
	for _, r := range reviews {
		if entry, ok := catalog.Lookup(r.AppID); ok && r.AppID != "" && entry.Title != "" {
			r.AppName = entry.Title
			stats.FromCatalog++
			continue
		}
		if r.AppName != "" {
			stats.FromSource++
			continue
		}
		r.AppName = UnknownAppName
		stats.Unknown++
	}

	e.logger.Info("[enricher] app_name resolved: catalog %d, source %d, unknown %d",
		stats.FromCatalog, stats.FromSource, stats.Unknown)
	return stats
}
