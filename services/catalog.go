package services

import (
	"app-reviews-pipeline/models"
	"app-reviews-pipeline/utils"
)

// CatalogStats counts catalog rows that did not become entries.
type CatalogStats struct {
	Duplicates int
	MissingID  int
}

// BuildCatalog turns the normalized metadata table into a Catalog. The first
// row seen for an app id wins; rows without an app id are dropped.
func BuildCatalog(t *models.Table, logger *utils.Logger) (*models.Catalog, CatalogStats) {
	var stats CatalogStats
	seen := utils.NewKeySet()
	entries := make([]*models.CatalogEntry, 0, t.Len())

	for _, r := range t.Rows {
		appID, ok := asString(r.Get(models.FieldAppID))
		if !ok {
			stats.MissingID++
			continue
		}
		if !seen.Add(appID) {
			stats.Duplicates++
			logger.Debug("[catalog] Duplicate app id skipped: %s", appID)
			continue
		}

		e := &models.CatalogEntry{AppID: appID}
		if s, ok := asString(r.Get(models.FieldTitle)); ok {
			e.Title = s
		}
		e.Developer = optString(r.Get(models.FieldDeveloper))
		e.Genre = optString(r.Get(models.FieldGenre))
		if f, ok := r.Get(models.FieldRatingScore).(float64); ok {
			e.RatingScore = &f
		}
		if n, ok := r.Get(models.FieldRatingsCount).(int64); ok {
			e.RatingsCount = &n
		}
		if n, ok := r.Get(models.FieldInstalls).(int64); ok {
			e.Installs = &n
		}
		if f, ok := r.Get(models.FieldPrice).(float64); ok {
			e.Price = f
		}
		entries = append(entries, e)
	}

	logger.Info("[catalog] Built catalog: %d apps (duplicates %d, missing id %d)",
		len(entries), stats.Duplicates, stats.MissingID)
	return models.NewCatalog(entries), stats
}

func optString(v any) *string {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	return &s
}
