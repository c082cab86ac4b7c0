package domain

import "time"

// SearchQuery is a single price-comparison request.
// CurrentPrice/CurrentSource are optional: when set, the result includes
// cheaper alternatives relative to where the user is shopping right now.
type SearchQuery struct {
	Text          string  `json:"text" binding:"required"`
	Category      string  `json:"category,omitempty"`
	CurrentPrice  float64 `json:"currentPrice,omitempty"`
	CurrentSource string  `json:"currentSource,omitempty"`
}

// RawListing is an unprocessed product entry scraped from one marketplace
type RawListing struct {
	Source    string    `json:"source"` // e.g., "priceoye"
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// CanonicalListing is the normalized, comparable form of a RawListing.
// Derived deterministically; never mutated after creation.
type CanonicalListing struct {
	Raw          *RawListing        `json:"raw"`
	Tokens       []string           `json:"tokens"` // sorted, deduplicated
	Brand        string             `json:"brand,omitempty"`
	Model        string             `json:"model,omitempty"`
	Specs        map[string]float64 `json:"specs,omitempty"` // e.g., "storage_gb" -> 128
	Price        float64            `json:"price"`           // canonical currency
	OrigCurrency string             `json:"origCurrency"`
}

// PricedListing wraps a canonical listing with ranking metadata
type PricedListing struct {
	*CanonicalListing
	Outlier bool `json:"outlier"` // price exceeds the group outlier bound
}

// MatchGroup is a cluster of listings across sources believed to denote
// the same physical product
type MatchGroup struct {
	Listings    []PricedListing `json:"listings"`
	Confidence  float64         `json:"confidence"` // 0-1
	Title       string          `json:"title"`      // representative title
	BestPrice   float64         `json:"bestPrice"`  // cheapest non-outlier price
	MedianPrice float64         `json:"medianPrice"`
}

// ComparisonResult is the final answer for one query. Built once, returned,
// discarded - nothing is persisted across queries.
type ComparisonResult struct {
	QueryID        string       `json:"queryId"`
	Query          SearchQuery  `json:"query"`
	CleanedTitle   string       `json:"cleanedTitle"`
	Groups         []MatchGroup `json:"groups"` // sorted by best price ascending
	Partial        bool         `json:"partial"`
	SourcesTried   []string     `json:"sourcesTried"`
	SourcesFailed  []string     `json:"sourcesFailed,omitempty"`
	CheaperOptions []RawListing `json:"cheaperOptions,omitempty"`
	BestDeal       *RawListing  `json:"bestDeal,omitempty"`
	Savings        float64      `json:"savings,omitempty"`
	SearchTimeMS   int64        `json:"searchTimeMs"`
	Source         string       `json:"source"` // "live" or "cache"
	CachedAt       time.Time    `json:"cachedAt,omitempty"`
}
