// Package marketfeed implements the client for the daily price feed. The
// free tier allows 25 requests per day, so the client carries its own
// request budget and a short-lived response cache.
package marketfeed

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const dailyRequestLimit = 25

// ClientInterface defines the feed operations used by the market data module
// Enables testing with mocks
type ClientInterface interface {
	GetDailyBars(symbol string, full bool) ([]DailyBar, error)
	GetQuote(symbol string) (*Quote, error)
	GetRemainingRequests() int
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// Client talks to the price feed HTTP API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.Mutex
	requestCount int
	resetAt      time.Time

	cacheMu  sync.RWMutex
	cache    map[string]cacheEntry
	cacheTTL CacheTTL
}

// NewClient creates a new feed client
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:      log.With().Str("client", "marketfeed").Logger(),
		resetAt:  nextMidnightUTC(),
		cache:    make(map[string]cacheEntry),
		cacheTTL: DefaultCacheTTL(),
	}
}

// SetCacheTTL overrides the default cache durations
func (c *Client) SetCacheTTL(ttl CacheTTL) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cacheTTL = ttl
}

// GetDailyBars fetches daily OHLCV history for a symbol, newest first.
// With full set the feed returns 20+ years of history, otherwise the most
// recent 100 trading days.
func (c *Client) GetDailyBars(symbol string, full bool) ([]DailyBar, error) {
	outputSize := "compact"
	if full {
		outputSize = "full"
	}

	params := map[string]string{
		"symbol":     symbol,
		"outputsize": outputSize,
	}

	key := buildCacheKey("TIME_SERIES_DAILY", params)
	if cached, ok := c.getFromCache(key); ok {
		return cached.([]DailyBar), nil
	}

	body, err := c.fetch("TIME_SERIES_DAILY", params)
	if err != nil {
		return nil, err
	}

	bars, err := parseDailySeries(body)
	if err != nil {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	c.setCache(key, bars, c.cacheTTL.PriceData)
	return bars, nil
}

// GetQuote fetches the latest quote for a symbol
func (c *Client) GetQuote(symbol string) (*Quote, error) {
	params := map[string]string{"symbol": symbol}

	key := buildCacheKey("GLOBAL_QUOTE", params)
	if cached, ok := c.getFromCache(key); ok {
		return cached.(*Quote), nil
	}

	body, err := c.fetch("GLOBAL_QUOTE", params)
	if err != nil {
		return nil, err
	}

	quote, err := parseGlobalQuote(body)
	if err != nil {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	c.setCache(key, quote, c.cacheTTL.Quotes)
	return quote, nil
}

// GetRemainingRequests returns how many requests are left in today's budget
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().UTC().After(c.resetAt) {
		c.requestCount = 0
		c.resetAt = nextMidnightUTC()
	}

	return dailyRequestLimit - c.requestCount
}

// ResetDailyCounter resets the request budget immediately
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.resetAt = nextMidnightUTC()
}

// ClearCache drops all cached responses
func (c *Client) ClearCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().UTC().After(c.resetAt) {
		c.requestCount = 0
		c.resetAt = nextMidnightUTC()
	}

	if c.requestCount >= dailyRequestLimit {
		return ErrRateLimitExceeded{}
	}

	c.requestCount++
	return nil
}

func (c *Client) fetch(function string, params map[string]string) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("function", function)
	values.Set("apikey", c.apiKey)
	for k, v := range params {
		values.Set(k, v)
	}

	reqURL := c.baseURL + "?" + values.Encode()

	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidAPIKey{}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("function", function).
		Int("bytes", len(body)).
		Int("remaining", c.GetRemainingRequests()).
		Msg("Feed request completed")

	return body, nil
}

// checkAPIError detects error payloads the feed returns with HTTP 200.
func (c *Client) checkAPIError(body []byte) error {
	if bytes.Contains(body, []byte(`"Note"`)) || bytes.Contains(body, []byte("Thank you for using")) {
		return ErrRateLimitExceeded{}
	}
	if bytes.Contains(body, []byte(`"Error Message"`)) {
		return fmt.Errorf("feed rejected request: %s", string(body))
	}
	return nil
}

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// buildCacheKey builds a stable cache key from the function name and
// parameters, excluding the API key.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := function
	for _, k := range keys {
		key += fmt.Sprintf("|%s=%s", k, params[k])
	}
	return key
}

func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
