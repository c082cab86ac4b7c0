package usecase

import (
	"sort"

	"github.com/pakbuy/backend/internal/domain"
)

// RankerConfig holds price ranking configuration
type RankerConfig struct {
	// OutlierMultiplier flags listings priced above multiplier x group median
	OutlierMultiplier float64
	// MaxCheaperOptions caps the cheaper-alternatives list in the result
	MaxCheaperOptions int
}

// Ranker derives the comparison output per match group: best and median
// price, outlier flags, group ordering, and cheaper alternatives relative to
// the price the user is currently looking at.
type Ranker struct {
	outlierMultiplier float64
	maxCheaperOptions int
}

// NewRanker creates a ranker with the given configuration
func NewRanker(config RankerConfig) *Ranker {
	multiplier := config.OutlierMultiplier
	if multiplier <= 1 {
		multiplier = 2.0
	}
	maxCheaper := config.MaxCheaperOptions
	if maxCheaper <= 0 {
		maxCheaper = 5
	}

	return &Ranker{
		outlierMultiplier: multiplier,
		maxCheaperOptions: maxCheaper,
	}
}

// Rank flags outliers, computes per-group prices, and sorts groups by best
// price ascending. Groups are modified in place and the sorted slice returned.
func (r *Ranker) Rank(groups []domain.MatchGroup) []domain.MatchGroup {
	for i := range groups {
		r.priceGroup(&groups[i])
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].BestPrice < groups[b].BestPrice
	})
	return groups
}

// priceGroup computes median and best price for one group. A listing priced
// above multiplier x median is flagged as a probable mismatch: it is excluded
// from the headline best price but kept in the group for transparency.
func (r *Ranker) priceGroup(group *domain.MatchGroup) {
	if len(group.Listings) == 0 {
		return
	}

	prices := make([]float64, 0, len(group.Listings))
	for _, listing := range group.Listings {
		prices = append(prices, listing.Price)
	}
	group.MedianPrice = median(prices)

	bound := group.MedianPrice * r.outlierMultiplier
	best := 0.0
	for i := range group.Listings {
		listing := &group.Listings[i]
		listing.Outlier = listing.Price > bound
		if listing.Outlier {
			continue
		}
		if best == 0 || listing.Price < best {
			best = listing.Price
		}
	}

	// All listings flagged: fall back to the unflagged minimum overall
	if best == 0 {
		best = prices[0]
		for _, p := range prices[1:] {
			if p < best {
				best = p
			}
		}
	}
	group.BestPrice = best
}

// CheaperOptions returns non-outlier listings cheaper than currentPrice from
// sources other than currentSource, sorted by price ascending and capped.
func (r *Ranker) CheaperOptions(groups []domain.MatchGroup, currentPrice float64, currentSource string) ([]domain.RawListing, *domain.RawListing, float64) {
	if currentPrice <= 0 {
		return nil, nil, 0
	}

	type option struct {
		raw   domain.RawListing
		price float64 // canonical
	}
	var options []option
	for _, group := range groups {
		for _, listing := range group.Listings {
			if listing.Outlier {
				continue
			}
			if listing.Raw.Source == currentSource {
				continue
			}
			if listing.Price < currentPrice {
				options = append(options, option{raw: *listing.Raw, price: listing.Price})
			}
		}
	}

	sort.SliceStable(options, func(a, b int) bool {
		return options[a].price < options[b].price
	})
	if len(options) > r.maxCheaperOptions {
		options = options[:r.maxCheaperOptions]
	}
	if len(options) == 0 {
		return nil, nil, 0
	}

	cheaper := make([]domain.RawListing, 0, len(options))
	for _, opt := range options {
		cheaper = append(cheaper, opt.raw)
	}
	best := cheaper[0]
	return cheaper, &best, currentPrice - options[0].price
}

// median returns the middle value of prices (mean of middles for even counts)
func median(prices []float64) float64 {
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
