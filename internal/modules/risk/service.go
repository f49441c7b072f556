package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/cache"
	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/events"
)

const (
	riskCacheKind   = "risk_report"
	riskCacheTTL    = 15 * time.Minute
	defaultLookback = 252
)

// ReturnsProvider supplies stored return series. Interface defined here to
// enable testing with mocks.
type ReturnsProvider interface {
	GetReturns(symbol string, lookback int) (*domain.ReturnSeries, error)
	GetReturnsBatch(symbols []string, lookback int) (map[string]*domain.ReturnSeries, error)
}

// Request is one analysis request. Inline series take precedence over the
// store-backed lookup; store-backed requests are cached.
type Request struct {
	Weights       map[string]float64
	Lookback      int
	RiskFreeRate  *float64
	MarketProxy   string
	InlineReturns map[string]*domain.ReturnSeries
	InlineProxy   *domain.ReturnSeries
}

// Service runs risk analyses against stored or caller-provided series
type Service struct {
	marketData   ReturnsProvider
	cache        *cache.Store
	bus          *events.Bus
	riskFreeRate float64
	log          zerolog.Logger
}

// NewService creates a new risk service. marketData may be nil when only
// inline analyses are needed; cache and bus may be nil.
func NewService(marketData ReturnsProvider, store *cache.Store, bus *events.Bus, riskFreeRate float64, log zerolog.Logger) *Service {
	return &Service{
		marketData:   marketData,
		cache:        store,
		bus:          bus,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "risk").Logger(),
	}
}

// Analyze resolves the request's return series and computes the risk
// report.
func (s *Service) Analyze(req Request) (Report, error) {
	rf := s.riskFreeRate
	if req.RiskFreeRate != nil {
		rf = *req.RiskFreeRate
	}

	lookback := req.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}

	storeBacked := len(req.InlineReturns) == 0

	var cacheKey string
	if s.cache != nil && storeBacked {
		cacheKey = requestCacheKey(req, rf, lookback)
		var cached Report
		if hit, err := s.cache.Get(riskCacheKind, cacheKey, &cached); err == nil && hit {
			s.log.Debug().Msg("Risk report served from cache")
			return cached, nil
		}
	}

	returns := req.InlineReturns
	if storeBacked {
		if s.marketData == nil {
			return Report{}, domain.NewDomainError("risk_analysis", "no return series provided and no market data store configured")
		}
		symbols := make([]string, 0, len(req.Weights))
		for symbol := range req.Weights {
			symbols = append(symbols, symbol)
		}
		if len(symbols) == 0 {
			return Report{}, domain.NewDomainError("risk_analysis", "weights are required for store-backed analysis")
		}

		var err error
		returns, err = s.marketData.GetReturnsBatch(symbols, lookback)
		if err != nil {
			return Report{}, fmt.Errorf("failed to load return series: %w", err)
		}
	}

	proxy := req.InlineProxy
	if proxy == nil && req.MarketProxy != "" && s.marketData != nil {
		p, err := s.marketData.GetReturns(req.MarketProxy, lookback)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", req.MarketProxy).Msg("Market proxy unavailable, beta defaults to 1.0")
		} else {
			proxy = p
		}
	}

	report, err := Analyze(req.Weights, returns, Options{RiskFreeRate: rf, MarketProxy: proxy})
	if err != nil {
		return Report{}, err
	}

	if s.cache != nil && storeBacked {
		if err := s.cache.Put(riskCacheKind, cacheKey, report, riskCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache risk report")
		}
	}

	if s.bus != nil {
		s.bus.Emit(events.RiskAnalyzed, "risk", events.RiskAnalyzedData{
			Symbols:      report.Symbols,
			Observations: report.Observations,
			Sharpe:       report.SharpeRatio,
		})
	}

	s.log.Info().
		Int("symbols", report.Symbols).
		Int("observations", report.Observations).
		Float64("sharpe", report.SharpeRatio).
		Msg("Risk analysis completed")

	return report, nil
}

func requestCacheKey(req Request, rf float64, lookback int) string {
	payload := struct {
		Weights  map[string]float64 `json:"weights"`
		Lookback int                `json:"lookback"`
		RF       float64            `json:"rf"`
		Proxy    string             `json:"proxy"`
	}{req.Weights, lookback, rf, req.MarketProxy}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%d|%s", lookback, req.MarketProxy)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
