package marketplace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pakbuy/backend/internal/domain"
)

// Config holds shared marketplace client configuration
type Config struct {
	BaseURL        string
	MaxResults     int
	RequestsPerSec float64
}

// client is the shared HTTP plumbing behind every site adapter: one outbound
// rate limiter per marketplace, request shaping, and status mapping.
// Retries are the orchestrator's job, not the client's.
type client struct {
	httpClient  *http.Client
	baseURL     string
	maxResults  int
	rateLimiter *rate.Limiter
}

func newClient(config Config) *client {
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	rps := config.RequestsPerSec
	if rps <= 0 {
		rps = 2.0
	}

	return &client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		maxResults:  maxResults,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 5),
	}
}

// get executes a rate-limited GET and returns the body.
// 404 maps to an empty body (no results); other non-200 statuses map to
// ErrSourceFetch so the orchestrator treats them as transient.
func (c *client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "PakBuy/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceFetch, err)
	}
	return body, nil
}

// absoluteURL resolves listing URLs that sites return relative or
// protocol-relative
func (c *client) absoluteURL(raw string) string {
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "http"):
		return raw
	case strings.HasPrefix(raw, "/"):
		return c.baseURL + raw
	default:
		return c.baseURL + "/" + raw
	}
}

// priceRegex matches the first number group in a displayed price, commas
// included. Stripping characters instead would fold the dot of a "Rs."
// prefix into the number.
var priceRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// parsePrice extracts a numeric price from a display string like "Rs. 34,500"
func parsePrice(display string) float64 {
	match := priceRegex.FindString(display)
	if match == "" {
		return 0
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return price
}
