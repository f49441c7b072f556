// Package marketdata maintains the daily price history that feeds the risk
// and optimization engines: feed sync, return series construction and
// volatility indicators.
package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/clients/marketfeed"
	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/events"
	"github.com/aristath/vega/pkg/formulas"
)

// Service coordinates price sync and derived series
type Service struct {
	repo    *PriceRepository
	feed    marketfeed.ClientInterface
	bus     *events.Bus
	symbols []string
	log     zerolog.Logger
}

// NewService creates a new market data service. symbols is the sync universe;
// the feed may be nil for a read-only service.
func NewService(repo *PriceRepository, feed marketfeed.ClientInterface, bus *events.Bus, symbols []string, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		feed:    feed,
		bus:     bus,
		symbols: symbols,
		log:     log.With().Str("service", "marketdata").Logger(),
	}
}

// SyncPrices pulls daily bars for every configured symbol into market.db.
// A symbol with no stored history gets the feed's full archive, otherwise
// the recent window. Per-symbol failures are logged and skipped; an error
// is returned only when no symbol could be synced.
func (s *Service) SyncPrices() (int, error) {
	if s.feed == nil {
		return 0, fmt.Errorf("no market feed configured")
	}
	if len(s.symbols) == 0 {
		s.log.Warn().Msg("No symbols configured for price sync")
		return 0, nil
	}

	synced := 0
	totalBars := 0
	var lastErr error

	for _, symbol := range s.symbols {
		bars, err := s.syncSymbol(symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to sync symbol")
			lastErr = err
			continue
		}
		synced++
		totalBars += bars
	}

	if synced == 0 && lastErr != nil {
		return 0, fmt.Errorf("failed to sync any symbol: %w", lastErr)
	}

	s.log.Info().
		Int("symbols", synced).
		Int("bars", totalBars).
		Msg("Price sync completed")

	if s.bus != nil {
		s.bus.Emit(events.PricesSynced, "marketdata", events.PricesSyncedData{
			Symbols: s.symbols,
			Bars:    totalBars,
		})
	}

	return synced, nil
}

func (s *Service) syncSymbol(symbol string) (int, error) {
	existing, err := s.repo.BarCount(symbol)
	if err != nil {
		return 0, err
	}

	feedBars, err := s.feed.GetDailyBars(symbol, existing == 0)
	if err != nil {
		return 0, err
	}

	// Feed returns newest first; store ascending.
	bars := make([]domain.PriceBar, 0, len(feedBars))
	for i := len(feedBars) - 1; i >= 0; i-- {
		fb := feedBars[i]
		bars = append(bars, domain.PriceBar{
			Date:   fb.Date,
			Open:   fb.Open,
			High:   fb.High,
			Low:    fb.Low,
			Close:  fb.Close,
			Volume: fb.Volume,
		})
	}

	written, err := s.repo.UpsertBars(symbol, bars)
	if err != nil {
		return 0, err
	}

	s.updateLatestPrice(symbol, bars)
	return written, nil
}

// updateLatestPrice prefers a live quote, falling back to the newest bar
func (s *Service) updateLatestPrice(symbol string, bars []domain.PriceBar) {
	if quote, err := s.feed.GetQuote(symbol); err == nil && quote.Price > 0 {
		asOf := quote.LatestTradingDay
		if asOf.IsZero() {
			asOf = time.Now()
		}
		if err := s.repo.SetLatestPrice(symbol, quote.Price, asOf); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store latest price")
		}
		return
	}

	if len(bars) > 0 {
		last := bars[len(bars)-1]
		if err := s.repo.SetLatestPrice(symbol, last.Close, last.Date); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store latest price")
		}
	}
}

// SeedBars stores caller-provided daily bars for a symbol, bypassing the
// market data feed. Used to backfill history and to run without an API key.
func (s *Service) SeedBars(symbol string, bars []domain.PriceBar) (int, error) {
	if symbol == "" {
		return 0, domain.NewDomainError("seed_bars", "symbol is required")
	}
	if len(bars) == 0 {
		return 0, domain.NewDomainError("seed_bars", "at least one bar is required")
	}

	sorted := make([]domain.PriceBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	written, err := s.repo.UpsertBars(symbol, sorted)
	if err != nil {
		return 0, fmt.Errorf("failed to seed bars: %w", err)
	}

	last := sorted[len(sorted)-1]
	if err := s.repo.SetLatestPrice(symbol, last.Close, last.Date); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store latest price")
	}

	s.log.Info().Str("symbol", symbol).Int("bars", written).Msg("Seeded price bars")
	return written, nil
}

// GetHistory returns stored daily bars for a symbol, ascending by date
func (s *Service) GetHistory(symbol string, lookback int) ([]domain.PriceBar, error) {
	return s.repo.GetHistory(symbol, lookback)
}

// GetLatestPrices returns the latest known price per symbol
func (s *Service) GetLatestPrices() (map[string]float64, error) {
	return s.repo.GetAllLatestPrices()
}

// GetReturns builds the close-to-close return series for a symbol over the
// last lookback trading days. Fewer than two usable bars is an
// InsufficientDataError.
func (s *Service) GetReturns(symbol string, lookback int) (*domain.ReturnSeries, error) {
	// One extra bar: n bars yield n-1 returns.
	bars, err := s.repo.GetHistory(symbol, lookback+1)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, domain.NewInsufficientDataError("returns", 2, len(bars))
	}

	series := BuildReturns(symbol, bars)
	if series.Len() < 1 {
		return nil, domain.NewInsufficientDataError("returns", 2, len(bars))
	}

	return series, nil
}

// GetReturnsBatch builds return series for several symbols, skipping symbols
// with insufficient history. The result may cover fewer symbols than asked;
// it is empty only when no symbol has usable history.
func (s *Service) GetReturnsBatch(symbols []string, lookback int) (map[string]*domain.ReturnSeries, error) {
	result := make(map[string]*domain.ReturnSeries, len(symbols))
	for _, symbol := range symbols {
		series, err := s.GetReturns(symbol, lookback)
		if err != nil {
			if domain.IsInsufficientData(err) {
				s.log.Debug().Str("symbol", symbol).Msg("Skipping symbol with insufficient history")
				continue
			}
			return nil, err
		}
		result[symbol] = series
	}
	return result, nil
}

// VolatilityReport describes realized volatility for one symbol
type VolatilityReport struct {
	Symbol        string    `json:"symbol"`
	Window        int       `json:"window"`
	Observations  int       `json:"observations"`
	Annualized    float64   `json:"annualized"`
	Rolling       *float64  `json:"rolling,omitempty"`
	RollingSeries []float64 `json:"rolling_series,omitempty"`
	AsOf          time.Time `json:"as_of"`
}

// GetVolatility computes full-period and rolling realized volatility from
// the stored history of a symbol.
func (s *Service) GetVolatility(symbol string, window, lookback int) (*VolatilityReport, error) {
	series, err := s.GetReturns(symbol, lookback)
	if err != nil {
		return nil, err
	}

	report := &VolatilityReport{
		Symbol:       symbol,
		Window:       window,
		Observations: series.Len(),
		Annualized:   formulas.AnnualizedVolatility(series.Returns),
		Rolling:      formulas.CurrentRollingVolatility(series.Returns, window),
		AsOf:         time.Now(),
	}

	return report, nil
}

// IndicatorReport carries the standard technical indicators for one symbol
type IndicatorReport struct {
	Symbol     string   `json:"symbol"`
	Close      float64  `json:"close"`
	SMA20      *float64 `json:"sma_20,omitempty"`
	SMA50      *float64 `json:"sma_50,omitempty"`
	RSI14      *float64 `json:"rsi_14,omitempty"`
	Rolling20  *float64 `json:"rolling_vol_20,omitempty"`
	Annualized float64  `json:"annualized_vol"`
}

// GetIndicators computes moving averages, RSI and realized volatility from
// a symbol's stored history.
func (s *Service) GetIndicators(symbol string, lookback int) (*IndicatorReport, error) {
	bars, err := s.repo.GetHistory(symbol, lookback)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return nil, domain.NewInsufficientDataError("indicators", 2, len(bars))
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	returns := formulas.CalculateReturns(closes)

	return &IndicatorReport{
		Symbol:     symbol,
		Close:      closes[len(closes)-1],
		SMA20:      formulas.CalculateSMA(closes, 20),
		SMA50:      formulas.CalculateSMA(closes, 50),
		RSI14:      formulas.CalculateRSI(closes, 14),
		Rolling20:  formulas.CurrentRollingVolatility(returns, 20),
		Annualized: formulas.AnnualizedVolatility(returns),
	}, nil
}
