package marketfeed

import "time"

// DailyBar is one day of OHLCV history for a symbol
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Quote is the latest available price snapshot for a symbol
type Quote struct {
	Symbol           string
	Open             float64
	High             float64
	Low              float64
	Price            float64
	Volume           int64
	LatestTradingDay time.Time
	PreviousClose    float64
	Change           float64
	ChangePercent    float64
}

// CacheTTL configures how long each response category stays cached
type CacheTTL struct {
	PriceData time.Duration
	Quotes    time.Duration
}

// DefaultCacheTTL returns the default cache durations
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{
		PriceData: 15 * time.Minute,
		Quotes:    5 * time.Minute,
	}
}
