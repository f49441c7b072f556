package optimization

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/cache"
	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/events"
)

const (
	optimizationCacheKind = "optimization_result"
	optimizationCacheTTL  = 15 * time.Minute
	defaultLookback       = 252
)

// ReturnsProvider supplies stored return series. Interface defined here
// to enable testing with mocks.
type ReturnsProvider interface {
	GetReturnsBatch(symbols []string, lookback int) (map[string]*domain.ReturnSeries, error)
}

// Request is one optimization request. Inline series take precedence
// over the store-backed lookup; store-backed requests are cached.
type Request struct {
	Symbols       []string
	Lookback      int
	RiskFreeRate  *float64
	InlineReturns map[string]*domain.ReturnSeries
}

// Service runs max-Sharpe solves against stored or caller-provided
// series
type Service struct {
	optimizer    *Optimizer
	marketData   ReturnsProvider
	cache        *cache.Store
	bus          *events.Bus
	riskFreeRate float64
	log          zerolog.Logger
}

// NewService creates a new optimization service. marketData may be nil
// when only inline solves are needed; cache and bus may be nil.
func NewService(optimizer *Optimizer, marketData ReturnsProvider, store *cache.Store, bus *events.Bus, riskFreeRate float64, log zerolog.Logger) *Service {
	return &Service{
		optimizer:    optimizer,
		marketData:   marketData,
		cache:        store,
		bus:          bus,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("service", "optimization").Logger(),
	}
}

// Optimize resolves the request's return series and runs the solver.
// Failed convergence is not an error: the result carries equal weights
// and Converged false.
func (s *Service) Optimize(req Request) (Result, error) {
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
		cacheKey = solveCacheKey(req.Symbols, lookback, rf)
		var cached Result
		if hit, err := s.cache.Get(optimizationCacheKind, cacheKey, &cached); err == nil && hit {
			s.log.Debug().Msg("Optimization result served from cache")
			return cached, nil
		}
	}

	returns := req.InlineReturns
	if storeBacked {
		if s.marketData == nil {
			return Result{}, domain.NewDomainError("optimization", "no return series provided and no market data store configured")
		}
		if len(req.Symbols) == 0 {
			return Result{}, domain.NewDomainError("optimization", "symbols are required for store-backed optimization")
		}

		var err error
		returns, err = s.marketData.GetReturnsBatch(req.Symbols, lookback)
		if err != nil {
			return Result{}, fmt.Errorf("failed to load return series: %w", err)
		}
	}

	result, err := s.optimizer.Optimize(returns, rf)
	if err != nil {
		return Result{}, err
	}

	if s.cache != nil && storeBacked {
		if err := s.cache.Put(optimizationCacheKind, cacheKey, result, optimizationCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache optimization result")
		}
	}

	if s.bus != nil {
		s.bus.Emit(events.OptimizationCompleted, "optimization", events.OptimizationCompletedData{
			Assets:    len(result.Weights),
			Sharpe:    result.SharpeRatio,
			Converged: result.Converged,
		})
	}

	s.log.Info().
		Int("assets", len(result.Weights)).
		Bool("converged", result.Converged).
		Float64("sharpe", result.SharpeRatio).
		Msg("Optimization completed")

	return result, nil
}

func solveCacheKey(symbols []string, lookback int, rf float64) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	payload := struct {
		Symbols  []string `json:"symbols"`
		Lookback int      `json:"lookback"`
		RF       float64  `json:"rf"`
	}{sorted, lookback, rf}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%d|%v", lookback, sorted)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
