package models

// RawRow is one decoded record from a physical source, before any
// interpretation. Values are strings (tabular sources), json.Number, bool,
// nested values (structured sources) or nil.
type RawRow map[string]any

// RawApp is the acquisition-side metadata record for one store listing.
// Field names follow the store payload so the catalog normalizer can map
// them without a dedicated alias.
type RawApp struct {
	AppID     string   `json:"appId"`
	Title     string   `json:"title"`
	Developer string   `json:"developer,omitempty"`
	Genre     string   `json:"genre,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Ratings   *int64   `json:"ratings,omitempty"`
	Installs  string   `json:"installs,omitempty"`
	Price     string   `json:"price,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// RawReview is the acquisition-side record for one user review.
type RawReview struct {
	AppID         string `json:"appId"`
	ReviewID      string `json:"reviewId"`
	UserName      string `json:"userName,omitempty"`
	Score         int    `json:"score"`
	Content       string `json:"content,omitempty"`
	ThumbsUpCount int    `json:"thumbsUpCount"`
	At            string `json:"at"`
}
