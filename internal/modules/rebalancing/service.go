package rebalancing

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/events"
)

// Default options when neither config nor request supplies a value.
const (
	DefaultTolerance      = 0.05
	DefaultTaxSensitivity = 0.5
	DefaultLongTermRate   = 0.20
	DefaultShortTermRate  = 0.37
)

// PositionProvider supplies current positions with their tax lots.
// Interface defined here to enable testing with mocks.
type PositionProvider interface {
	Positions() ([]domain.Position, error)
}

// SuggestRequest carries per-request overrides and optional inline
// positions for what-if planning. Inline positions take precedence over
// the portfolio store.
type SuggestRequest struct {
	Tolerance       *float64
	TaxSensitivity  *float64
	InlinePositions []domain.Position
}

// Service runs the rebalancer against the stored portfolio or
// caller-provided positions
type Service struct {
	rebalancer *Rebalancer
	portfolio  PositionProvider
	bus        *events.Bus
	defaults   Options
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a new rebalancing service. portfolio may be nil
// when only inline planning is needed; bus may be nil. Zero fields in
// defaults fall back to the package defaults.
func NewService(rebalancer *Rebalancer, portfolio PositionProvider, bus *events.Bus, defaults Options, log zerolog.Logger) *Service {
	return &Service{
		rebalancer: rebalancer,
		portfolio:  portfolio,
		bus:        bus,
		defaults:   withDefaults(defaults),
		now:        time.Now,
		log:        log.With().Str("service", "rebalancing").Logger(),
	}
}

func withDefaults(o Options) Options {
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.TaxSensitivity == 0 {
		o.TaxSensitivity = DefaultTaxSensitivity
	}
	if o.LongTermRate == 0 {
		o.LongTermRate = DefaultLongTermRate
	}
	if o.ShortTermRate == 0 {
		o.ShortTermRate = DefaultShortTermRate
	}
	return o
}

// Suggest builds a rebalance plan and publishes it. Request overrides
// may pin the tolerance or tax sensitivity exactly, including to zero.
func (s *Service) Suggest(req SuggestRequest) (Plan, error) {
	opts := s.defaults
	if req.Tolerance != nil {
		opts.Tolerance = *req.Tolerance
	}
	if req.TaxSensitivity != nil {
		opts.TaxSensitivity = *req.TaxSensitivity
	}

	positions := req.InlinePositions
	if len(positions) == 0 {
		var err error
		positions, err = s.loadPositions()
		if err != nil {
			return Plan{}, err
		}
	}

	plan, err := s.rebalancer.SuggestRebalancing(positions, opts)
	if err != nil {
		return Plan{}, err
	}

	var sells, buys int
	for _, t := range plan.Trades {
		if t.Action == ActionSell {
			sells++
		} else {
			buys++
		}
	}

	if s.bus != nil {
		s.bus.Emit(events.RebalancePlanned, "rebalancing", events.RebalancePlannedData{
			PlanID:    plan.ID,
			Sells:     sells,
			Buys:      buys,
			TaxImpact: plan.TaxImpact,
		})
	}

	s.log.Info().
		Str("plan_id", plan.ID).
		Int("sells", sells).
		Int("buys", buys).
		Float64("tax_impact", plan.TaxImpact).
		Msg("Rebalance plan suggested")

	return plan, nil
}

// WashSales reports open wash-sale windows across the stored portfolio.
func (s *Service) WashSales() ([]WashSaleRisk, error) {
	positions, err := s.loadPositions()
	if err != nil {
		return nil, err
	}
	return s.rebalancer.CheckWashSales(positions, s.now()), nil
}

// TaxEfficiency scores the stored portfolio's tax posture.
func (s *Service) TaxEfficiency() (TaxEfficiency, error) {
	positions, err := s.loadPositions()
	if err != nil {
		return TaxEfficiency{}, err
	}
	return s.rebalancer.AnalyzeTaxEfficiency(positions), nil
}

// CostBasis compares cost basis methods for selling sharesToSell of one
// stored position.
func (s *Service) CostBasis(symbol string, sharesToSell float64) (CostBasisComparison, error) {
	if symbol == "" {
		return CostBasisComparison{}, domain.NewDomainError("rebalancing", "symbol is required")
	}

	positions, err := s.loadPositions()
	if err != nil {
		return CostBasisComparison{}, err
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return s.rebalancer.CompareCostBasisMethods(p, sharesToSell, s.defaults)
		}
	}
	return CostBasisComparison{}, domain.NewDomainError("rebalancing", fmt.Sprintf("no position for symbol %s", symbol))
}

// YearEnd generates the year-end tax plan for the stored portfolio.
func (s *Service) YearEnd() (YearEndPlan, error) {
	positions, err := s.loadPositions()
	if err != nil {
		return YearEndPlan{}, err
	}
	return s.rebalancer.PlanYearEnd(positions, s.now(), s.defaults)
}

func (s *Service) loadPositions() ([]domain.Position, error) {
	if s.portfolio == nil {
		return nil, domain.NewDomainError("rebalancing", "no positions provided and no portfolio store configured")
	}
	positions, err := s.portfolio.Positions()
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	return positions, nil
}
