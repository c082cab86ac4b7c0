package usecase

import (
	"testing"

	"github.com/pakbuy/backend/internal/domain"
)

func pricedGroup(source string, prices ...float64) domain.MatchGroup {
	group := domain.MatchGroup{Confidence: 1.0}
	for _, price := range prices {
		raw := rawListing(source, "Widget", price)
		group.Listings = append(group.Listings, domain.PricedListing{
			CanonicalListing: &domain.CanonicalListing{Raw: raw, Price: price},
		})
	}
	return group
}

func TestRankFlagsOutliers(t *testing.T) {
	r := NewRanker(RankerConfig{OutlierMultiplier: 2.0})

	// Median 1075; 50000 is a probable mismatch: flagged, excluded from the
	// headline best price, retained in the group
	groups := r.Rank([]domain.MatchGroup{pricedGroup("priceoye", 1000, 1050, 1100, 50000)})

	group := groups[0]
	if group.MedianPrice != 1075 {
		t.Errorf("MedianPrice = %v, want 1075", group.MedianPrice)
	}
	if group.BestPrice != 1000 {
		t.Errorf("BestPrice = %v, want 1000", group.BestPrice)
	}
	if len(group.Listings) != 4 {
		t.Fatalf("group has %d listings, want all 4 retained", len(group.Listings))
	}

	outliers := 0
	for _, listing := range group.Listings {
		if listing.Outlier {
			outliers++
			if listing.Price != 50000 {
				t.Errorf("flagged price = %v, want 50000", listing.Price)
			}
		}
	}
	if outliers != 1 {
		t.Errorf("flagged %d listings, want 1", outliers)
	}
}

func TestRankSortsGroupsByBestPrice(t *testing.T) {
	r := NewRanker(RankerConfig{OutlierMultiplier: 2.0})

	groups := r.Rank([]domain.MatchGroup{
		pricedGroup("priceoye", 150000),
		pricedGroup("mega", 35000, 34500),
		pricedGroup("daraz", 52000),
	})

	wantBest := []float64{34500, 52000, 150000}
	for i, want := range wantBest {
		if groups[i].BestPrice != want {
			t.Errorf("groups[%d].BestPrice = %v, want %v", i, groups[i].BestPrice, want)
		}
	}
}

func TestRankSingleListingGroup(t *testing.T) {
	r := NewRanker(RankerConfig{OutlierMultiplier: 2.0})

	groups := r.Rank([]domain.MatchGroup{pricedGroup("mega", 4200)})
	if groups[0].BestPrice != 4200 || groups[0].MedianPrice != 4200 {
		t.Errorf("best/median = %v/%v, want 4200/4200", groups[0].BestPrice, groups[0].MedianPrice)
	}
	if groups[0].Listings[0].Outlier {
		t.Error("lone listing flagged as outlier")
	}
}

func TestCheaperOptions(t *testing.T) {
	r := NewRanker(RankerConfig{OutlierMultiplier: 2.0, MaxCheaperOptions: 5})

	groups := r.Rank([]domain.MatchGroup{
		pricedGroup("priceoye", 35000),
		pricedGroup("mega", 34500),
		pricedGroup("daraz", 36000),
	})

	t.Run("finds cheaper listings and savings", func(t *testing.T) {
		cheaper, best, savings := r.CheaperOptions(groups, 36000, "daraz")
		if len(cheaper) != 2 {
			t.Fatalf("got %d options, want 2", len(cheaper))
		}
		if cheaper[0].Price != 34500 || cheaper[1].Price != 35000 {
			t.Errorf("option prices = %v, %v; want 34500, 35000", cheaper[0].Price, cheaper[1].Price)
		}
		if best == nil || best.Price != 34500 {
			t.Fatalf("best deal = %v, want price 34500", best)
		}
		if savings != 1500 {
			t.Errorf("savings = %v, want 1500", savings)
		}
	})

	t.Run("excludes the current source", func(t *testing.T) {
		cheaper, _, _ := r.CheaperOptions(groups, 40000, "mega")
		for _, option := range cheaper {
			if option.Source == "mega" {
				t.Errorf("option from current source %q included", option.Source)
			}
		}
	})

	t.Run("no current price means no options", func(t *testing.T) {
		cheaper, best, savings := r.CheaperOptions(groups, 0, "")
		if cheaper != nil || best != nil || savings != 0 {
			t.Errorf("got %v, %v, %v; want empty", cheaper, best, savings)
		}
	})

	t.Run("nothing cheaper", func(t *testing.T) {
		cheaper, best, _ := r.CheaperOptions(groups, 1000, "")
		if cheaper != nil || best != nil {
			t.Errorf("got %v, %v; want empty", cheaper, best)
		}
	})
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"odd count", []float64{3, 1, 2}, 2},
		{"even count", []float64{1000, 1050, 1100, 50000}, 1075},
		{"single", []float64{42}, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.prices); got != tt.want {
				t.Errorf("median(%v) = %v, want %v", tt.prices, got, tt.want)
			}
		})
	}
}
