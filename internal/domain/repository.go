package domain

import (
	"context"
	"time"
)

// SiteAdapter fetches raw listings for a query from one marketplace.
// Adding a marketplace means adding an implementation, not touching the pipeline.
type SiteAdapter interface {
	// Name returns the stable source identifier, e.g., "priceoye"
	Name() string

	// Search fetches listings for the cleaned query title
	Search(ctx context.Context, query string) ([]RawListing, error)
}

// MatchAssistant is the optional external AI service consulted for
// ambiguous-confidence pairs and title cleaning. Implementations must enforce
// their own short timeout and never block the pipeline.
type MatchAssistant interface {
	// ScorePair returns a similarity score (0-1) for two canonical listings
	ScorePair(ctx context.Context, a, b *CanonicalListing) (float64, error)

	// CleanTitle strips marketing noise from a raw product title
	CleanTitle(ctx context.Context, title string) (string, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (*ComparisonResult, error)
	Set(ctx context.Context, key string, value *ComparisonResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
