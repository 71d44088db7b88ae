// Package market fetches token market data from DexScreener and exposes it to the model as the
// getTokenInfo tool.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the DexScreener API root; token lookups live under /tokens/{address}.
	DefaultBaseURL = "https://api.dexscreener.com/latest/dex"

	// DefaultRatePerMinute matches DexScreener's published quota for the tokens endpoint.
	DefaultRatePerMinute = 300
)

var (
	ErrMissingAddress = errors.New("token address is required")
	ErrUnexpectedCode = errors.New("unexpected status from market data endpoint")
)

// ClientConfig holds configuration options for the market data client.
type ClientConfig struct {
	// BaseURL is the API root (default: DefaultBaseURL)
	BaseURL string

	// RatePerMinute paces outbound lookups (default: DefaultRatePerMinute)
	RatePerMinute int

	// HTTPClient overrides the transport (default: http.DefaultClient semantics, no timeout)
	HTTPClient *http.Client
}

// Client performs read-only token lookups.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a market data client, filling in defaults for zero values.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = DefaultRatePerMinute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	every := rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(every, 1),
	}
}

// FetchToken returns the decoded JSON body for the token at address, untouched.
// Network, status and decoding failures are all returned as errors; nothing is retried.
func (c *Client) FetchToken(ctx context.Context, address string) (map[string]any, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrMissingAddress
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for market data rate limit: %w", err)
	}

	endpoint := c.baseURL + "/tokens/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create market data request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("ERROR [MarketClient] GET %s failed: %v", endpoint, err)
		return nil, fmt.Errorf("market data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the log line.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		log.Printf("ERROR [MarketClient] GET %s returned %s: %s", endpoint, resp.Status, snippet)
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedCode, resp.Status)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode market data response: %w", err)
	}

	log.Printf("[MarketClient] Fetched token data for %s", address)
	return body, nil
}
