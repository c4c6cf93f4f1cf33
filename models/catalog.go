package models

// CatalogEntry is one application from the metadata source, keyed by AppID.
type CatalogEntry struct {
	AppID        string
	Title        string
	Developer    *string
	Genre        *string
	RatingScore  *float64
	RatingsCount *int64
	Installs     *int64
	Price        float64
}

// Catalog is the deduplicated set of CatalogEntries, in first-seen order.
type Catalog struct {
	Entries []*CatalogEntry
	byID    map[string]*CatalogEntry
}

// NewCatalog builds a Catalog. Entries must already be unique by AppID.
func NewCatalog(entries []*CatalogEntry) *Catalog {
	c := &Catalog{Entries: entries, byID: make(map[string]*CatalogEntry, len(entries))}
	for _, e := range entries {
		c.byID[e.AppID] = e
	}
	return c
}

// Lookup returns the entry for appID, if any.
func (c *Catalog) Lookup(appID string) (*CatalogEntry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.byID[appID]
	return e, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Entries)
}
