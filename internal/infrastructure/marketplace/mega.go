package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/pakbuy/backend/internal/domain"
)

// Mega fetches listings from Mega.pk's search API
type Mega struct {
	*client
}

// NewMega creates a Mega.pk site adapter
func NewMega(config Config) *Mega {
	return &Mega{client: newClient(config)}
}

// Name implements domain.SiteAdapter
func (m *Mega) Name() string { return "mega" }

// megaResponse mirrors the Mega.pk search payload; prices come as display
// strings ("Rs. 34,500")
type megaResponse struct {
	Items []struct {
		Name  string `json:"name"`
		Price string `json:"price"`
		Link  string `json:"link"`
		Image string `json:"image"`
	} `json:"items"`
}

// Search implements domain.SiteAdapter
func (m *Mega) Search(ctx context.Context, query string) ([]domain.RawListing, error) {
	reqURL := fmt.Sprintf("%s/search.json?%s", m.baseURL, url.Values{"query": {query}}.Encode())

	body, err := m.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp megaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceFetch, err)
	}

	now := time.Now()
	listings := make([]domain.RawListing, 0, m.maxResults)
	for _, item := range resp.Items {
		if len(listings) >= m.maxResults {
			break
		}
		price := parsePrice(item.Price)
		if price <= 0 || item.Name == "" {
			continue
		}
		listings = append(listings, domain.RawListing{
			Source:    m.Name(),
			Title:     item.Name,
			Price:     price,
			Currency:  "PKR",
			URL:       m.absoluteURL(item.Link),
			ImageURL:  item.Image,
			FetchedAt: now,
		})
	}
	return listings, nil
}
