package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pakbuy/backend/internal/domain"
)

// MatcherConfig holds configuration for the matcher
type MatcherConfig struct {
	// Threshold is the minimum combined score for two listings to merge
	Threshold float64
	// BrandModelBonus is added when brand and model both match exactly
	BrandModelBonus float64
	// SpecGateCap caps the combined score when a shared numeric spec disagrees
	SpecGateCap float64
	// AmbiguousBand is the width of the band below Threshold in which the
	// external assistant is consulted
	AmbiguousBand float64
	// SourcePriority orders sources for deterministic processing;
	// lower index wins ties
	SourcePriority []string
}

// Matcher clusters canonical listings from different sources into match
// groups. Clustering is a single deterministic pass over scored pairs, so the
// output is identical regardless of adapter completion order.
type Matcher struct {
	threshold       float64
	brandModelBonus float64
	specGateCap     float64
	ambiguousBand   float64
	sourceRank      map[string]int
	assistant       domain.MatchAssistant // nil disables assisted scoring
}

// NewMatcher creates a matcher with the given configuration.
// assistant may be nil; ambiguous pairs then use the local score unchanged.
func NewMatcher(config MatcherConfig, assistant domain.MatchAssistant) *Matcher {
	threshold := config.Threshold
	if threshold <= 0 {
		threshold = 0.75
	}
	bonus := config.BrandModelBonus
	if bonus <= 0 {
		bonus = 0.15
	}
	gateCap := config.SpecGateCap
	if gateCap <= 0 {
		gateCap = 0.30
	}
	band := config.AmbiguousBand
	if band < 0 {
		band = 0.10
	}

	sourceRank := make(map[string]int, len(config.SourcePriority))
	for i, source := range config.SourcePriority {
		sourceRank[source] = i
	}

	return &Matcher{
		threshold:       threshold,
		brandModelBonus: bonus,
		specGateCap:     gateCap,
		ambiguousBand:   band,
		sourceRank:      sourceRank,
		assistant:       assistant,
	}
}

// candidatePair is a cross-source pair with its combined similarity score
type candidatePair struct {
	i, j  int
	score float64
}

// Match clusters listings into match groups. Every input listing lands in
// exactly one group; listings with no qualifying partner become singletons.
func (m *Matcher) Match(ctx context.Context, listings []*domain.CanonicalListing) []domain.MatchGroup {
	ordered := m.stableOrder(listings)
	ordered = dedupeSameSource(ordered)
	if len(ordered) == 0 {
		return nil
	}

	pairs := m.scorePairs(ctx, ordered)

	// Higher scores merge first; ties go to the earlier pair in stable order
	sort.SliceStable(pairs, func(a, b int) bool {
		if pairs[a].score != pairs[b].score {
			return pairs[a].score > pairs[b].score
		}
		if pairs[a].i != pairs[b].i {
			return pairs[a].i < pairs[b].i
		}
		return pairs[a].j < pairs[b].j
	})

	uf := newUnionFind(len(ordered))
	for _, pair := range pairs {
		if pair.score < m.threshold {
			continue
		}
		// Merging must not put two listings from one source in a group;
		// the higher-scoring pair was processed first and wins
		uf.union(pair.i, pair.j, ordered, pair.score)
	}

	return m.buildGroups(ordered, uf)
}

// stableOrder sorts listings by source priority then fetch order
func (m *Matcher) stableOrder(listings []*domain.CanonicalListing) []*domain.CanonicalListing {
	ordered := make([]*domain.CanonicalListing, len(listings))
	copy(ordered, listings)
	sort.SliceStable(ordered, func(a, b int) bool {
		return m.rank(ordered[a].Raw.Source) < m.rank(ordered[b].Raw.Source)
	})
	return ordered
}

func (m *Matcher) rank(source string) int {
	if r, ok := m.sourceRank[source]; ok {
		return r
	}
	return len(m.sourceRank) // unknown sources sort last
}

// dedupeSameSource removes same-source duplicates (identical token set and
// specs), keeping the cheapest. Duplicates within one marketplace are seller
// reposts, not match candidates.
func dedupeSameSource(listings []*domain.CanonicalListing) []*domain.CanonicalListing {
	best := make(map[string]int, len(listings))
	kept := make([]*domain.CanonicalListing, 0, len(listings))

	for _, listing := range listings {
		key := dedupeKey(listing)
		if idx, ok := best[key]; ok {
			if listing.Price < kept[idx].Price {
				kept[idx] = listing
			}
			continue
		}
		best[key] = len(kept)
		kept = append(kept, listing)
	}
	return kept
}

// dedupeKey fingerprints a listing by source, token set, and specs
func dedupeKey(listing *domain.CanonicalListing) string {
	var sb strings.Builder
	sb.WriteString(listing.Raw.Source)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(listing.Tokens, " "))

	specKeys := make([]string, 0, len(listing.Specs))
	for key := range listing.Specs {
		specKeys = append(specKeys, key)
	}
	sort.Strings(specKeys)
	for _, key := range specKeys {
		fmt.Fprintf(&sb, "|%s=%g", key, listing.Specs[key])
	}
	return sb.String()
}

// scorePairs computes combined scores for every cross-source pair, consulting
// the assistant for scores in the ambiguous band below the threshold
func (m *Matcher) scorePairs(ctx context.Context, listings []*domain.CanonicalListing) []candidatePair {
	var pairs []candidatePair
	var ambiguous []int
	for i := 0; i < len(listings); i++ {
		for j := i + 1; j < len(listings); j++ {
			if listings[i].Raw.Source == listings[j].Raw.Source {
				continue
			}

			score := m.scorePair(listings[i], listings[j])
			switch {
			case score >= m.threshold:
				pairs = append(pairs, candidatePair{i: i, j: j, score: score})
			case m.assistant != nil && score >= m.threshold-m.ambiguousBand:
				pairs = append(pairs, candidatePair{i: i, j: j, score: score})
				ambiguous = append(ambiguous, len(pairs)-1)
			}
		}
	}

	m.consultAssistant(ctx, listings, pairs, ambiguous)

	kept := pairs[:0]
	for _, pair := range pairs {
		if pair.score >= m.threshold {
			kept = append(kept, pair)
		}
	}
	return kept
}

// consultAssistant resolves ambiguous pairs with the assistant, one
// independent consult per pair fanned out concurrently so the assistant's
// per-request timeout is paid once, not once per pair. Writes go to distinct
// slots; a failed consult keeps the local score.
func (m *Matcher) consultAssistant(ctx context.Context, listings []*domain.CanonicalListing, pairs []candidatePair, ambiguous []int) {
	if len(ambiguous) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range ambiguous {
		g.Go(func() error {
			pair := &pairs[idx]
			a, b := listings[pair.i], listings[pair.j]
			score, err := m.assistant.ScorePair(gctx, a, b)
			if err != nil {
				log.Printf("[MATCH] Assistant unavailable for %q vs %q, using local score %.2f: %v",
					a.Raw.Title, b.Raw.Title, pair.score, err)
				return nil
			}
			pair.score = score
			return nil
		})
	}
	_ = g.Wait()
}

// scorePair computes the combined similarity for one cross-source pair:
// Jaccard text score, plus the brand/model bonus, capped by the spec gate.
// A disagreeing numeric spec is strong negative evidence no text overlap
// can overcome.
func (m *Matcher) scorePair(a, b *domain.CanonicalListing) float64 {
	textScore := jaccard(a.Tokens, b.Tokens)

	score := textScore
	if a.Brand != "" && a.Brand == b.Brand && a.Model != "" && a.Model == b.Model {
		score += m.brandModelBonus
	}
	if score > 1.0 {
		score = 1.0
	}

	if specsDisagree(a.Specs, b.Specs) && score > m.specGateCap {
		score = m.specGateCap
	}
	return score
}

// jaccard computes token-set similarity: |intersection| / |union|
func jaccard(tokens1, tokens2 []string) float64 {
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}

	set := make(map[string]bool, len(tokens1))
	for _, t := range tokens1 {
		set[t] = true
	}

	intersection := 0
	union := len(set)
	for _, t := range tokens2 {
		if set[t] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// specsDisagree reports whether any numeric spec present on both listings
// has different values
func specsDisagree(a, b map[string]float64) bool {
	for key, av := range a {
		if bv, ok := b[key]; ok && av != bv {
			return true
		}
	}
	return false
}

// unionFind tracks merge groups with a one-listing-per-source constraint
type unionFind struct {
	parent   []int
	sources  []map[string]bool
	scoreSum []float64
	merges   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent:   make([]int, n),
		sources:  make([]map[string]bool, n),
		scoreSum: make([]float64, n),
		merges:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// union merges the groups of i and j unless the merge would place two
// listings from the same source in one group. Returns whether it merged.
func (uf *unionFind) union(i, j int, listings []*domain.CanonicalListing, score float64) bool {
	ri, rj := uf.find(i), uf.find(j)
	if ri == rj {
		return false
	}

	si := uf.sourceSet(ri, listings)
	sj := uf.sourceSet(rj, listings)
	for source := range sj {
		if si[source] {
			return false
		}
	}

	// Attach the larger-index root under the smaller for stable roots
	if rj < ri {
		ri, rj = rj, ri
		si, sj = sj, si
	}
	uf.parent[rj] = ri
	for source := range sj {
		si[source] = true
	}
	uf.scoreSum[ri] += uf.scoreSum[rj] + score
	uf.merges[ri] += uf.merges[rj] + 1
	return true
}

// sourceSet lazily builds the source set for a root
func (uf *unionFind) sourceSet(root int, listings []*domain.CanonicalListing) map[string]bool {
	if uf.sources[root] == nil {
		uf.sources[root] = map[string]bool{listings[root].Raw.Source: true}
	}
	return uf.sources[root]
}

// buildGroups materializes match groups from union-find roots, in stable
// order of each group's first member
func (m *Matcher) buildGroups(listings []*domain.CanonicalListing, uf *unionFind) []domain.MatchGroup {
	members := make(map[int][]int)
	var roots []int
	for i := range listings {
		root := uf.find(i)
		if _, seen := members[root]; !seen {
			roots = append(roots, root)
		}
		members[root] = append(members[root], i)
	}
	sort.Ints(roots)

	groups := make([]domain.MatchGroup, 0, len(roots))
	for _, root := range roots {
		idxs := members[root]
		priced := make([]domain.PricedListing, 0, len(idxs))
		for _, idx := range idxs {
			priced = append(priced, domain.PricedListing{CanonicalListing: listings[idx]})
		}

		// Singletons trivially denote themselves; merged groups carry the
		// mean of their accepted pair scores
		confidence := 1.0
		if uf.merges[root] > 0 {
			confidence = uf.scoreSum[root] / float64(uf.merges[root])
		}

		groups = append(groups, domain.MatchGroup{
			Listings:   priced,
			Confidence: confidence,
			Title:      listings[idxs[0]].Raw.Title,
		})
	}
	return groups
}
