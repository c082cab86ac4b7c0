package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/pakbuy/backend/internal/domain"
)

// Daraz fetches listings from Daraz.pk's catalog ajax endpoint
type Daraz struct {
	*client
}

// NewDaraz creates a Daraz.pk site adapter
func NewDaraz(config Config) *Daraz {
	return &Daraz{client: newClient(config)}
}

// Name implements domain.SiteAdapter
func (d *Daraz) Name() string { return "daraz" }

// darazResponse mirrors the catalog ajax payload: listings nested under
// mods.listItems, prices as strings, URLs protocol-relative
type darazResponse struct {
	Mods struct {
		ListItems []struct {
			Name       string `json:"name"`
			Price      string `json:"price"`
			ProductURL string `json:"productUrl"`
			Image      string `json:"image"`
		} `json:"listItems"`
	} `json:"mods"`
}

// Search implements domain.SiteAdapter
func (d *Daraz) Search(ctx context.Context, query string) ([]domain.RawListing, error) {
	params := url.Values{"ajax": {"true"}, "q": {query}}
	reqURL := fmt.Sprintf("%s/catalog/?%s", d.baseURL, params.Encode())

	body, err := d.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp darazResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceFetch, err)
	}

	now := time.Now()
	listings := make([]domain.RawListing, 0, d.maxResults)
	for _, item := range resp.Mods.ListItems {
		if len(listings) >= d.maxResults {
			break
		}
		price := parsePrice(item.Price)
		if price <= 0 || item.Name == "" {
			continue
		}
		listings = append(listings, domain.RawListing{
			Source:    d.Name(),
			Title:     item.Name,
			Price:     price,
			Currency:  "PKR",
			URL:       d.absoluteURL(item.ProductURL),
			ImageURL:  item.Image,
			FetchedAt: now,
		})
	}
	return listings, nil
}
