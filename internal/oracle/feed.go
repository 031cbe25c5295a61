// Package oracle fetches external asset prices and drives the arena price
// lifecycle: start samples, end samples, and finalization.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FeedClient queries an HTTP price feed. The feed is expected to answer
// GET {base}?symbols=BTC,ETH with a JSON object mapping each known symbol to
// its USD price, e.g. {"BTC": 64123.55, "ETH": 3300.1}. Symbols the feed does
// not know are simply absent from the response.
type FeedClient struct {
	baseURL string
	http    *http.Client
}

// NewFeedClient creates a FeedClient for the given endpoint.
func NewFeedClient(baseURL string, timeout time.Duration) *FeedClient {
	return &FeedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Prices fetches USD prices for the given symbols. Missing symbols are
// omitted from the result; the caller decides whether that is an error.
func (fc *FeedClient) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fc.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("oracle: build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := fc.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle: fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle: feed returned status %d", resp.StatusCode)
	}

	var out map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("oracle: decode feed response: %w", err)
	}

	// Drop non-positive quotes so a broken feed can never zero a sample.
	for sym, price := range out {
		if price <= 0 {
			delete(out, sym)
		}
	}
	return out, nil
}
