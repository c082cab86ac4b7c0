package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pakbuy/backend/internal/domain"
)

// nonAlphanumericRegex strips everything a cache key cannot carry
var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)

// ComparisonServiceConfig holds configuration for the comparison service
type ComparisonServiceConfig struct {
	Deadline time.Duration
	CacheTTL time.Duration
}

// ComparisonService is the pipeline entry point: cache check, title cleaning,
// concurrent fetch, normalize, match, rank. Every query is processed
// statelessly from scratch; no failure in one query affects the next.
type ComparisonService struct {
	cache        domain.CacheRepository
	orchestrator *Orchestrator
	normalizer   *Normalizer
	matcher      *Matcher
	ranker       *Ranker
	assistant    domain.MatchAssistant // nil when disabled
	deadline     time.Duration
	cacheTTL     time.Duration
}

// NewComparisonService creates a comparison service with its dependencies.
// assistant may be nil; title cleaning then uses the local fallback only.
func NewComparisonService(
	cache domain.CacheRepository,
	orchestrator *Orchestrator,
	normalizer *Normalizer,
	matcher *Matcher,
	ranker *Ranker,
	assistant domain.MatchAssistant,
	config ComparisonServiceConfig,
) *ComparisonService {
	deadline := config.Deadline
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &ComparisonService{
		cache:        cache,
		orchestrator: orchestrator,
		normalizer:   normalizer,
		matcher:      matcher,
		ranker:       ranker,
		assistant:    assistant,
		deadline:     deadline,
		cacheTTL:     cacheTTL,
	}
}

// Compare answers one price-comparison query.
// The only error surfaced is ErrInvalidQuery or ErrAllSourcesFailed;
// everything else degrades to a partial or full result.
func (s *ComparisonService) Compare(ctx context.Context, query *domain.SearchQuery) (*domain.ComparisonResult, error) {
	if query == nil || strings.TrimSpace(query.Text) == "" {
		return nil, domain.ErrInvalidQuery
	}

	cacheKey := s.generateCacheKey(query)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		// The cache hands out the stored pointer; concurrent hits for the
		// same query must not write to it
		hit := *cached
		hit.Source = "cache"
		return &hit, nil
	}

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	cleaned := s.cleanTitle(ctx, query.Text)
	log.Printf("[COMPARE] Query %q cleaned to %q", query.Text, cleaned)

	raws, partial, failedSources, err := s.orchestrator.Fetch(ctx, cleaned, strings.ToLower(query.CurrentSource))
	if err != nil {
		return nil, err
	}

	canonical := s.normalizer.NormalizeAll(raws)
	groups := s.matcher.Match(ctx, canonical)
	groups = s.ranker.Rank(groups)

	cheaper, bestDeal, savings := s.ranker.CheaperOptions(groups, query.CurrentPrice, strings.ToLower(query.CurrentSource))

	result := &domain.ComparisonResult{
		QueryID:        uuid.NewString(),
		Query:          *query,
		CleanedTitle:   cleaned,
		Groups:         groups,
		Partial:        partial,
		SourcesTried:   s.orchestrator.SourceNames(strings.ToLower(query.CurrentSource)),
		SourcesFailed:  failedSources,
		CheaperOptions: cheaper,
		BestDeal:       bestDeal,
		Savings:        savings,
		SearchTimeMS:   time.Since(started).Milliseconds(),
		Source:         "live",
	}

	log.Printf("[COMPARE] %d groups from %d listings (partial=%v) in %dms",
		len(groups), len(raws), partial, result.SearchTimeMS)

	// Partial results are not cached: a retry may do better
	if !partial {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			log.Printf("[COMPARE] Cache store failed: %v", err)
		}
	}

	return result, nil
}

// cleanTitle asks the assistant to clean the title, falling back to the
// local cleaner on any failure
func (s *ComparisonService) cleanTitle(ctx context.Context, title string) string {
	if s.assistant != nil {
		if cleaned, err := s.assistant.CleanTitle(ctx, title); err == nil && cleaned != "" {
			return cleaned
		}
	}
	return CleanTitleLocal(title)
}

// generateCacheKey creates a normalized cache key from a query.
// CurrentPrice is part of the key because savings are baked into the result.
func (s *ComparisonService) generateCacheKey(query *domain.SearchQuery) string {
	return fmt.Sprintf("compare:%s:%s:%s:%g",
		normalizeForCacheKey(query.Text),
		normalizeForCacheKey(query.Category),
		normalizeForCacheKey(query.CurrentSource),
		query.CurrentPrice)
}

// normalizeForCacheKey lowercases and strips non-alphanumerics for stable keys
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := nonAlphanumericRegex.ReplaceAllString(strings.ToLower(s), "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
