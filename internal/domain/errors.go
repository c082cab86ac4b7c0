package domain

import "errors"

var (
	// ErrInvalidQuery is returned when query parameters are invalid
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrAllSourcesFailed is returned when every marketplace fetch failed
	ErrAllSourcesFailed = errors.New("all marketplace sources failed")

	// ErrSourceFetch is returned when a single marketplace fetch fails
	ErrSourceFetch = errors.New("marketplace fetch failed")

	// ErrParseListing is returned when a scraped listing is malformed
	ErrParseListing = errors.New("malformed listing")

	// ErrAssistantUnavailable is returned when the match assistant times out or errors
	ErrAssistantUnavailable = errors.New("match assistant unavailable")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
