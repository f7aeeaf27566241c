package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khliao/invest-command/internal/config"
	"github.com/khliao/invest-command/internal/metrics"
)

// ErrNotFound means the provider has no quote for the symbol.
var ErrNotFound = errors.New("quote not found")

// PriceCache caches last-close prices in front of the HTTP fetch.
type PriceCache interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	SetPrice(ctx context.Context, symbol string, price float64, ttl time.Duration) error
}

// Client fetches last closing prices from a Yahoo-style quote API.
type Client struct {
	http     *http.Client
	baseURL  string
	suffix   string
	cache    PriceCache
	cacheTTL time.Duration
}

// NewClient creates a quote client. cache may be nil, in which case
// every lookup goes to the provider.
func NewClient(cfg config.QuoteConfig, cache PriceCache) *Client {
	return &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		baseURL:  cfg.BaseURL,
		suffix:   cfg.MarketSuffix,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
	}
}

// NormalizeSymbol maps a bare all-numeric ticker (4 digits or more,
// e.g. 0052 or 009814) to the local exchange by appending the market
// suffix; every other symbol passes through unchanged.
func NormalizeSymbol(symbol, suffix string) string {
	if len(symbol) < 4 {
		return symbol
	}
	for _, r := range symbol {
		if r < '0' || r > '9' {
			return symbol
		}
	}
	return symbol + suffix
}

// LastClose returns the latest closing price for a symbol. The symbol
// is normalized first; cached prices are served when fresh.
func (c *Client) LastClose(ctx context.Context, symbol string) (decimal.Decimal, error) {
	normalized := NormalizeSymbol(symbol, c.suffix)

	if c.cache != nil {
		if price, err := c.cache.GetPrice(ctx, normalized); err == nil {
			metrics.QuoteCacheHits.Inc()
			return decimal.NewFromFloat(price), nil
		}
	}

	price, err := c.fetchQuote(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.QuoteFetches.WithLabelValues("not_found").Inc()
		} else {
			metrics.QuoteFetches.WithLabelValues("error").Inc()
		}
		return decimal.Zero, err
	}
	metrics.QuoteFetches.WithLabelValues("ok").Inc()

	if c.cache != nil {
		if err := c.cache.SetPrice(ctx, normalized, price, c.cacheTTL); err != nil {
			log.Printf("Warning: failed to cache price for %s: %v", normalized, err)
		}
	}

	return decimal.NewFromFloat(price), nil
}

// quoteResponse is the provider's quote envelope.
type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,regularMarketPrice,regularMarketPreviousClose")

	reqURL := c.baseURL + "/v7/finance/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	// The quote API rejects non-browser user agents.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("quote API returned status %d for %s: %s", resp.StatusCode, symbol, string(body))
	}

	var decoded quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("failed to decode quote response: %w", err)
	}

	if len(decoded.QuoteResponse.Result) == 0 {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}

	result := decoded.QuoteResponse.Result[0]
	if result.RegularMarketPrice != nil && *result.RegularMarketPrice > 0 {
		return *result.RegularMarketPrice, nil
	}
	if result.RegularMarketPreviousClose != nil && *result.RegularMarketPreviousClose > 0 {
		return *result.RegularMarketPreviousClose, nil
	}

	return 0, fmt.Errorf("%s: no usable price in response: %w", symbol, ErrNotFound)
}
