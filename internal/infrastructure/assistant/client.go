// Package assistant is the HTTP client for the optional external AI match
// service. Every call runs under the client's own short timeout, independent
// of the query deadline; callers treat failures as advisory and fall back to
// local scoring.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pakbuy/backend/internal/domain"
)

// Client talks to the AI match-assist server
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// NewClient creates an assistant client. timeout bounds each request;
// zero means the 3s default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
	}
}

// pairPayload is the canonical listing view the assistant scores on
type pairPayload struct {
	Title  string             `json:"title"`
	Tokens []string           `json:"tokens"`
	Brand  string             `json:"brand,omitempty"`
	Model  string             `json:"model,omitempty"`
	Specs  map[string]float64 `json:"specs,omitempty"`
}

type scorePairRequest struct {
	A pairPayload `json:"a"`
	B pairPayload `json:"b"`
}

type scorePairResponse struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
}

// ScorePair asks the assistant for a similarity verdict on two listings.
// All failures map to ErrAssistantUnavailable.
func (c *Client) ScorePair(ctx context.Context, a, b *domain.CanonicalListing) (float64, error) {
	req := scorePairRequest{A: toPayload(a), B: toPayload(b)}

	var resp scorePairResponse
	if err := c.post(ctx, "/match-pair", req, &resp); err != nil {
		return 0, err
	}
	if !resp.Success || resp.Score < 0 || resp.Score > 1 {
		return 0, fmt.Errorf("%w: unusable score %v", domain.ErrAssistantUnavailable, resp.Score)
	}
	return resp.Score, nil
}

type cleanTitleRequest struct {
	Title string `json:"title"`
}

type cleanTitleResponse struct {
	Success bool   `json:"success"`
	Cleaned string `json:"cleaned"`
}

// CleanTitle asks the assistant to strip marketing noise from a title
func (c *Client) CleanTitle(ctx context.Context, title string) (string, error) {
	var resp cleanTitleResponse
	if err := c.post(ctx, "/clean-title", cleanTitleRequest{Title: title}, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Cleaned == "" {
		return "", fmt.Errorf("%w: empty cleaned title", domain.ErrAssistantUnavailable)
	}
	return resp.Cleaned, nil
}

// post sends a JSON request under the client's own timeout
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAssistantUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrAssistantUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAssistantUnavailable, err)
	}
	return nil
}

func toPayload(listing *domain.CanonicalListing) pairPayload {
	return pairPayload{
		Title:  listing.Raw.Title,
		Tokens: listing.Tokens,
		Brand:  listing.Brand,
		Model:  listing.Model,
		Specs:  listing.Specs,
	}
}
