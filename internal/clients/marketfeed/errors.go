package marketfeed

import "fmt"

// ErrRateLimitExceeded is returned when the daily request budget is spent
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "daily API rate limit exceeded"
}

// ErrInvalidAPIKey is returned when the feed rejects the configured key
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "invalid API key"
}

// ErrSymbolNotFound is returned when the feed has no data for a symbol
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}
