package usecase

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pakbuy/backend/internal/domain"
)

func testMatcher(assistant domain.MatchAssistant) *Matcher {
	return NewMatcher(MatcherConfig{
		Threshold:       0.75,
		BrandModelBonus: 0.15,
		SpecGateCap:     0.30,
		AmbiguousBand:   0.10,
		SourcePriority:  []string{"priceoye", "mega", "daraz"},
	}, assistant)
}

// canonicalFixtures normalizes raw listings for matcher tests
func canonicalFixtures(t *testing.T, raws ...*domain.RawListing) []*domain.CanonicalListing {
	t.Helper()
	n := testNormalizer()
	listings := make([]*domain.CanonicalListing, 0, len(raws))
	for _, raw := range raws {
		c, err := n.Normalize(raw)
		if err != nil {
			t.Fatalf("normalize %q: %v", raw.Title, err)
		}
		listings = append(listings, c)
	}
	return listings
}

func TestMatchMergesSameProductAcrossSources(t *testing.T) {
	m := testMatcher(nil)
	listings := canonicalFixtures(t,
		rawListing("priceoye", "Samsung Galaxy A14 128GB", 35000),
		rawListing("mega", "Samsung A14 128 GB Black", 34500),
		rawListing("daraz", "iPhone 13", 150000),
	)

	groups := m.Match(context.Background(), listings)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	// A and B merge: brand/model match, spec agrees, high token overlap
	merged := groups[0]
	if len(merged.Listings) != 2 {
		t.Fatalf("merged group has %d listings, want 2", len(merged.Listings))
	}
	if merged.Confidence < 0.75 || merged.Confidence > 1 {
		t.Errorf("Confidence = %v, want in [0.75, 1]", merged.Confidence)
	}

	// C stays a singleton with full confidence
	single := groups[1]
	if len(single.Listings) != 1 {
		t.Fatalf("singleton group has %d listings, want 1", len(single.Listings))
	}
	if single.Confidence != 1.0 {
		t.Errorf("singleton Confidence = %v, want 1.0", single.Confidence)
	}
	if single.Listings[0].Raw.Source != "daraz" {
		t.Errorf("singleton source = %q, want daraz", single.Listings[0].Raw.Source)
	}
}

func TestMatchSpecMismatchNeverMerges(t *testing.T) {
	m := testMatcher(nil)
	listings := canonicalFixtures(t,
		rawListing("priceoye", "Phone X 8GB RAM", 20000),
		rawListing("mega", "Phone X 4GB RAM", 19000),
	)

	// Near-identical titles, but the RAM spec disagrees: strong negative
	// evidence, two singleton groups
	groups := m.Match(context.Background(), listings)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	score := m.scorePair(listings[0], listings[1])
	if score > 0.30 {
		t.Errorf("gated score = %v, want <= 0.30", score)
	}
}

func TestMatchEveryListingInExactlyOneGroup(t *testing.T) {
	m := testMatcher(nil)
	listings := canonicalFixtures(t,
		rawListing("priceoye", "Samsung Galaxy A14 128GB", 35000),
		rawListing("priceoye", "Samsung Galaxy S23 256GB", 180000),
		rawListing("mega", "Samsung A14 128 GB Black", 34500),
		rawListing("mega", "iPhone 13", 150000),
		rawListing("daraz", "Apple iPhone 13 PTA Approved", 149000),
	)

	groups := m.Match(context.Background(), listings)

	seen := make(map[string]int)
	total := 0
	for _, group := range groups {
		for _, listing := range group.Listings {
			seen[listing.Raw.Title]++
			total++
		}
	}
	if total != len(listings) {
		t.Errorf("total grouped listings = %d, want %d", total, len(listings))
	}
	for title, count := range seen {
		if count != 1 {
			t.Errorf("listing %q appears in %d groups, want 1", title, count)
		}
	}
}

func TestMatchOrderIndependent(t *testing.T) {
	m := testMatcher(nil)
	base := []*domain.RawListing{
		rawListing("priceoye", "Samsung Galaxy A14 128GB", 35000),
		rawListing("mega", "Samsung A14 128 GB Black", 34500),
		rawListing("daraz", "iPhone 13", 150000),
		rawListing("mega", "Xiaomi Redmi Note 12 128GB", 52000),
		rawListing("daraz", "Redmi Note 12 128 GB", 51500),
	}

	reference := groupFingerprint(m.Match(context.Background(), canonicalFixtures(t, base...)))

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]*domain.RawListing, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := groupFingerprint(m.Match(context.Background(), canonicalFixtures(t, shuffled...)))
		if !reflect.DeepEqual(got, reference) {
			t.Fatalf("trial %d: groups differ for permuted input:\n got %v\nwant %v", trial, got, reference)
		}
	}
}

// groupFingerprint reduces groups to a comparable shape: sorted member
// titles per group, groups sorted
func groupFingerprint(groups []domain.MatchGroup) [][]string {
	fp := make([][]string, 0, len(groups))
	for _, group := range groups {
		titles := make([]string, 0, len(group.Listings))
		for _, listing := range group.Listings {
			titles = append(titles, listing.Raw.Source+":"+listing.Raw.Title)
		}
		sort.Strings(titles)
		fp = append(fp, titles)
	}
	sort.Slice(fp, func(i, j int) bool { return fp[i][0] < fp[j][0] })
	return fp
}

func TestMatchOnePerSourceConstraint(t *testing.T) {
	m := testMatcher(nil)
	// Two near-identical listings from mega both match the priceoye one;
	// only the higher-scoring pair may merge
	listings := canonicalFixtures(t,
		rawListing("priceoye", "Samsung Galaxy A14 128GB", 35000),
		rawListing("mega", "Samsung Galaxy A14 128GB White", 34500),
		rawListing("mega", "Samsung Galaxy A14 128 GB Blue", 34000),
	)

	groups := m.Match(context.Background(), listings)
	for _, group := range groups {
		sources := make(map[string]bool)
		for _, listing := range group.Listings {
			if sources[listing.Raw.Source] {
				t.Fatalf("group %q holds two listings from %s", group.Title, listing.Raw.Source)
			}
			sources[listing.Raw.Source] = true
		}
	}
}

func TestMatchSameSourceDuplicatesDeduplicated(t *testing.T) {
	m := testMatcher(nil)
	// Same marketplace, same product, two prices: seller repost, keep cheapest
	listings := canonicalFixtures(t,
		rawListing("mega", "Samsung Galaxy A14 128GB", 35500),
		rawListing("mega", "Samsung Galaxy A14 128GB", 34800),
	)

	groups := m.Match(context.Background(), listings)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].Listings) != 1 {
		t.Fatalf("group has %d listings, want 1 after dedupe", len(groups[0].Listings))
	}
	if groups[0].Listings[0].Price != 34800 {
		t.Errorf("kept price = %v, want the cheaper 34800", groups[0].Listings[0].Price)
	}
}

// stubAssistant scripts ScorePair responses for ambiguous-band tests
type stubAssistant struct {
	score  float64
	err    error
	called int
}

func (s *stubAssistant) ScorePair(ctx context.Context, a, b *domain.CanonicalListing) (float64, error) {
	s.called++
	return s.score, s.err
}

func (s *stubAssistant) CleanTitle(ctx context.Context, title string) (string, error) {
	return title, nil
}

// ambiguousPair builds two hand-rolled listings whose Jaccard lands in the
// ambiguous band below the 0.75 threshold (4 shared of 6 = 0.667)
func ambiguousPair() []*domain.CanonicalListing {
	a := &domain.CanonicalListing{
		Raw:    &domain.RawListing{Source: "priceoye", Title: "a", Price: 1000},
		Tokens: []string{"alpha", "bravo", "charlie", "delta", "echo"},
		Price:  1000,
	}
	b := &domain.CanonicalListing{
		Raw:    &domain.RawListing{Source: "mega", Title: "b", Price: 900},
		Tokens: []string{"alpha", "bravo", "charlie", "delta", "foxtrot"},
		Price:  900,
	}
	return []*domain.CanonicalListing{a, b}
}

func TestMatchAssistantOverridesAmbiguousScore(t *testing.T) {
	assistant := &stubAssistant{score: 0.92}
	m := testMatcher(assistant)

	groups := m.Match(context.Background(), ambiguousPair())
	if assistant.called != 1 {
		t.Fatalf("assistant called %d times, want 1", assistant.called)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 (assistant said merge)", len(groups))
	}
	if len(groups[0].Listings) != 2 {
		t.Errorf("group has %d listings, want 2", len(groups[0].Listings))
	}
}

func TestMatchAssistantFailureFallsBackToLocalScore(t *testing.T) {
	assistant := &stubAssistant{err: errors.New("connection refused")}
	m := testMatcher(assistant)

	// Local score 0.667 is below threshold; on assistant failure the pair
	// stays unmerged
	groups := m.Match(context.Background(), ambiguousPair())
	if assistant.called != 1 {
		t.Fatalf("assistant called %d times, want 1", assistant.called)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 singletons", len(groups))
	}
}

func TestMatchNoAssistantUsesLocalScoreUnchanged(t *testing.T) {
	m := testMatcher(nil)
	groups := m.Match(context.Background(), ambiguousPair())
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 singletons", len(groups))
	}
}

// barrierAssistant answers only once two consults are in flight together;
// serial consults time out and fall back to the local score
type barrierAssistant struct {
	mu      sync.Mutex
	waiting int
	ready   chan struct{}
	calls   int32
}

func (b *barrierAssistant) ScorePair(ctx context.Context, _, _ *domain.CanonicalListing) (float64, error) {
	atomic.AddInt32(&b.calls, 1)

	b.mu.Lock()
	b.waiting++
	if b.waiting == 2 {
		close(b.ready)
	}
	b.mu.Unlock()

	select {
	case <-b.ready:
		return 0.92, nil
	case <-time.After(time.Second):
		return 0, errors.New("consult waited alone")
	}
}

func (b *barrierAssistant) CleanTitle(ctx context.Context, title string) (string, error) {
	return title, nil
}

func TestMatchAmbiguousConsultsRunConcurrently(t *testing.T) {
	assistant := &barrierAssistant{ready: make(chan struct{})}
	m := testMatcher(assistant)

	// Two independent ambiguous pairs; no cross-product token overlap
	first := ambiguousPair()
	second := []*domain.CanonicalListing{
		{
			Raw:    &domain.RawListing{Source: "priceoye", Title: "c", Price: 2000},
			Tokens: []string{"golf", "hotel", "india", "juliet", "kilo"},
			Price:  2000,
		},
		{
			Raw:    &domain.RawListing{Source: "mega", Title: "d", Price: 1900},
			Tokens: []string{"golf", "hotel", "india", "juliet", "lima"},
			Price:  1900,
		},
	}

	groups := m.Match(context.Background(), append(first, second...))
	if got := atomic.LoadInt32(&assistant.calls); got != 2 {
		t.Fatalf("assistant called %d times, want 2", got)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want both ambiguous pairs merged", len(groups))
	}
	for _, group := range groups {
		if len(group.Listings) != 2 {
			t.Errorf("group %q has %d listings, want 2", group.Title, len(group.Listings))
		}
	}
}
