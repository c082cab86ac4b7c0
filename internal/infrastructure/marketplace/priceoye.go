package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/pakbuy/backend/internal/domain"
)

// PriceOye fetches listings from PriceOye.pk's search API
type PriceOye struct {
	*client
}

// NewPriceOye creates a PriceOye site adapter
func NewPriceOye(config Config) *PriceOye {
	return &PriceOye{client: newClient(config)}
}

// Name implements domain.SiteAdapter
func (p *PriceOye) Name() string { return "priceoye" }

// priceOyeResponse mirrors the PriceOye search API payload
type priceOyeResponse struct {
	Products []struct {
		Title    string `json:"title"`
		Price    int64  `json:"price"`
		URL      string `json:"url"`
		ImageURL string `json:"image"`
	} `json:"products"`
}

// Search implements domain.SiteAdapter
func (p *PriceOye) Search(ctx context.Context, query string) ([]domain.RawListing, error) {
	reqURL := fmt.Sprintf("%s/api/search?%s", p.baseURL, url.Values{"q": {query}}.Encode())

	body, err := p.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp priceOyeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceFetch, err)
	}

	now := time.Now()
	listings := make([]domain.RawListing, 0, p.maxResults)
	for _, product := range resp.Products {
		if len(listings) >= p.maxResults {
			break
		}
		if product.Price <= 0 || product.Title == "" {
			continue
		}
		listings = append(listings, domain.RawListing{
			Source:    p.Name(),
			Title:     product.Title,
			Price:     float64(product.Price),
			Currency:  "PKR",
			URL:       p.absoluteURL(product.URL),
			ImageURL:  product.ImageURL,
			FetchedAt: now,
		})
	}
	return listings, nil
}
