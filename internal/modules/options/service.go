package options

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/cache"
	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/events"
)

const (
	chainCacheKind = "chain_analysis"
	chainCacheTTL  = 15 * time.Minute
)

// Service exposes the pricing engine and chain analyzer to the HTTP layer,
// adding result caching and event emission around the pure analysis code.
type Service struct {
	analyzer     *Analyzer
	cache        *cache.Store
	bus          *events.Bus
	riskFreeRate float64
	log          zerolog.Logger
}

// NewService creates a new options service. cache and bus may be nil; the
// service then analyzes without memoization or notifications.
func NewService(analyzer *Analyzer, store *cache.Store, bus *events.Bus, riskFreeRate float64, log zerolog.Logger) *Service {
	return &Service{
		analyzer:     analyzer,
		cache:        store,
		bus:          bus,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "options").Logger(),
	}
}

// RiskFreeRate returns the configured annualized risk-free rate, used by
// handlers when a request does not carry its own.
func (s *Service) RiskFreeRate() float64 {
	return s.riskFreeRate
}

// Price values a single option.
func (s *Service) Price(spot, strike, timeToExpiryYears, volatility, riskFreeRate float64, optionType domain.OptionType) (Quote, error) {
	return PriceAndGreeks(spot, strike, timeToExpiryYears, volatility, riskFreeRate, optionType)
}

// Probability returns the risk-neutral probability the option expires in
// the money.
func (s *Service) Probability(spot, strike, timeToExpiryYears, volatility, riskFreeRate float64, optionType domain.OptionType) (float64, error) {
	return ProbabilityOfProfit(spot, strike, timeToExpiryYears, volatility, riskFreeRate, optionType)
}

// CoveredCall evaluates a covered call position.
func (s *Service) CoveredCall(spot, strike, timeToExpiryYears, volatility, premium float64, riskFreeRate float64) (CoveredCallAnalysis, error) {
	return AnalyzeCoveredCall(spot, strike, timeToExpiryYears, volatility, riskFreeRate, premium)
}

// AnalyzeChain runs the full chain analysis, serving repeated requests for
// an identical chain from the analysis cache.
func (s *Service) AnalyzeChain(chain domain.OptionsChain) (ChainAnalysis, error) {
	key := chainCacheKey(chain)

	if s.cache != nil {
		var cached ChainAnalysis
		if hit, err := s.cache.Get(chainCacheKind, key, &cached); err == nil && hit {
			s.log.Debug().Str("underlying", chain.Underlying).Msg("Chain analysis served from cache")
			return cached, nil
		}
	}

	analysis, err := s.analyzer.AnalyzeChain(chain)
	if err != nil {
		return ChainAnalysis{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(chainCacheKind, key, analysis, chainCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("underlying", chain.Underlying).Msg("Failed to cache chain analysis")
		}
	}

	if s.bus != nil {
		s.bus.Emit(events.ChainAnalyzed, "options", events.ChainAnalyzedData{
			Underlying: chain.Underlying,
			Contracts:  len(chain.Contracts),
			Spot:       chain.Spot,
		})
	}

	s.log.Info().
		Str("underlying", chain.Underlying).
		Int("contracts", len(chain.Contracts)).
		Msg("Options chain analyzed")

	return analysis, nil
}

// chainCacheKey derives a stable key from the chain content, so any change
// to spot or contracts misses the cache.
func chainCacheKey(chain domain.OptionsChain) string {
	raw, err := json.Marshal(chain)
	if err != nil {
		return chain.Underlying
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
