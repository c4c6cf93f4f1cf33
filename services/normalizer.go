package services

import (
	"sort"
	"strings"

	"app-reviews-pipeline/models"
)

// reviewAliases maps each canonical review column to the source spellings
// known for it, in precedence order. When a row carries several spellings of
// the same column, the first non-null one in this order wins.
var reviewAliases = map[string][]string{
	models.FieldAppID:         {"app_id", "appId", "appid", "package_name", "packageName"},
	models.FieldAppName:       {"app_name", "appName", "app_title", "appTitle"},
	models.FieldReviewID:      {"review_id", "reviewId", "reviewid"},
	models.FieldUserName:      {"user_name", "userName", "username", "user", "author"},
	models.FieldScore:         {"score", "rating", "stars", "review_rating"},
	models.FieldContent:       {"content", "review_text", "reviewText", "text", "body"},
	models.FieldThumbsUpCount: {"thumbs_up_count", "thumbsUpCount", "likes", "thumbs_up", "helpful_count"},
	models.FieldAt:            {"at", "review_time", "reviewTime", "review_date", "date", "timestamp"},
}

// catalogAliases is the same table for the catalog metadata source.
var catalogAliases = map[string][]string{
	models.FieldAppID:        {"app_id", "appId", "appid", "package_name", "packageName"},
	models.FieldTitle:        {"title", "app_name", "appName", "name"},
	models.FieldDeveloper:    {"developer", "developer_name", "developerName"},
	models.FieldGenre:        {"genre", "category"},
	models.FieldRatingScore:  {"rating_score", "score", "rating"},
	models.FieldRatingsCount: {"ratings_count", "ratings", "num_ratings"},
	models.FieldInstalls:     {"installs", "downloads", "min_installs", "minInstalls"},
	models.FieldPrice:        {"price"},
}

// Normalizer renames source-specific fields onto one canonical column set.
type Normalizer struct {
	columns []string
	aliases map[string][]string
	coerce  func(col string, v any) any
}

// NewReviewNormalizer returns the normalizer for review sources. Review
// values are left raw; validity is decided by the Cleaner.
func NewReviewNormalizer() *Normalizer {
	return &Normalizer{columns: models.ReviewColumns, aliases: reviewAliases, coerce: keepRaw}
}

// NewCatalogNormalizer returns the normalizer for the catalog source, which
// also coerces the free-text numeric columns.
func NewCatalogNormalizer() *Normalizer {
	return &Normalizer{columns: models.CatalogColumns, aliases: catalogAliases, coerce: coerceCatalog}
}

// Columns returns the canonical column order produced by Normalize.
func (n *Normalizer) Columns() []string {
	return n.columns
}

// CanonicalName reports which canonical column a source key maps to.
func (n *Normalizer) CanonicalName(key string) (string, bool) {
	for _, col := range n.columns {
		for _, alias := range n.aliases[col] {
			if alias == key || strings.EqualFold(alias, key) {
				return col, true
			}
		}
	}
	return "", false
}

// Normalize maps raw onto the canonical columns. Every canonical column is
// present in the result, nil when the source lacks it. Unknown keys are
// dropped. The second result is false when no key of raw is known at all.
func (n *Normalizer) Normalize(raw models.RawRow, source string, line int) (models.Row, bool) {
	folded := foldKeys(raw)
	values := make(map[string]any, len(n.columns))
	mapped := false

	for _, col := range n.columns {
		values[col] = nil
		for _, alias := range n.aliases[col] {
			v, ok := raw[alias]
			if !ok {
				var key string
				if key, ok = folded[strings.ToLower(alias)]; ok {
					v = raw[key]
				}
			}
			if !ok {
				continue
			}
			mapped = true
			if v = n.coerce(col, cleanValue(v)); v != nil {
				values[col] = v
				break
			}
		}
	}

	if !mapped {
		return models.Row{}, false
	}
	return models.Row{Source: source, Line: line, Values: values}, true
}

// foldKeys indexes raw keys by lower case. On collisions the
// lexicographically smallest original key wins, keeping the result stable.
func foldKeys(raw models.RawRow) map[string]string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	folded := make(map[string]string, len(keys))
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, ok := folded[lk]; !ok {
			folded[lk] = k
		}
	}
	return folded
}

// cleanValue trims strings and turns empty strings into nil.
func cleanValue(v any) any {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return s
	}
	return v
}

func keepRaw(_ string, v any) any { return v }

func coerceCatalog(col string, v any) any {
	if v == nil {
		return nil
	}
	switch col {
	case models.FieldInstalls:
		if n := ParseInstalls(v); n != nil {
			return *n
		}
		return nil
	case models.FieldPrice:
		if f, ok := ParsePrice(v); ok {
			return f
		}
		return nil
	case models.FieldRatingScore:
		if f, ok := asFloat(v); ok && f >= 0 && f <= 5 {
			return f
		}
		return nil
	case models.FieldRatingsCount:
		if n, ok := asInt(v); ok && n >= 0 {
			return n
		}
		return nil
	default:
		if s, ok := asString(v); ok {
			return s
		}
		return nil
	}
}
