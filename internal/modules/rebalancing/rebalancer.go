// Package rebalancing suggests tax-aware trades that move a portfolio
// back to its target weights. Sells harvest losses before touching
// gains, and gain lots are ordered so long-term, low-gain lots go
// first when tax sensitivity is high.
package rebalancing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
)

// Trade actions.
const (
	ActionSell = "sell"
	ActionBuy  = "buy"
)

// Options tunes one rebalancing run. The service fills zero values from
// its configured defaults before calling the engine.
type Options struct {
	Tolerance      float64 `json:"tolerance"`
	TaxSensitivity float64 `json:"tax_sensitivity"`
	LongTermRate   float64 `json:"long_term_rate"`
	ShortTermRate  float64 `json:"short_term_rate"`
}

func (o Options) validate() error {
	if o.Tolerance < 0 {
		return domain.NewDomainError("rebalancing", fmt.Sprintf("tolerance must be non-negative, got %v", o.Tolerance))
	}
	if o.TaxSensitivity < 0 || o.TaxSensitivity > 1 {
		return domain.NewDomainError("rebalancing", fmt.Sprintf("tax sensitivity must be within [0, 1], got %v", o.TaxSensitivity))
	}
	if o.LongTermRate < 0 || o.LongTermRate >= 1 {
		return domain.NewDomainError("rebalancing", fmt.Sprintf("long-term rate must be within [0, 1), got %v", o.LongTermRate))
	}
	if o.ShortTermRate < 0 || o.ShortTermRate >= 1 {
		return domain.NewDomainError("rebalancing", fmt.Sprintf("short-term rate must be within [0, 1), got %v", o.ShortTermRate))
	}
	return nil
}

// LotSale records how much of one lot a suggested sell consumes.
type LotSale struct {
	LotID      string  `json:"lot_id,omitempty"`
	Shares     float64 `json:"shares"`
	CostBasis  float64 `json:"cost_basis"`
	IsLongTerm bool    `json:"is_long_term"`
	Gain       float64 `json:"gain"`
	TaxImpact  float64 `json:"tax_impact"`
}

// Trade is one suggested buy or sell. Sells carry the lots they consume;
// buys carry no immediate tax impact.
type Trade struct {
	Action    string    `json:"action"`
	Symbol    string    `json:"symbol"`
	Shares    float64   `json:"shares"`
	Value     float64   `json:"value"`
	TaxImpact float64   `json:"tax_impact"`
	Lots      []LotSale `json:"lots,omitempty"`
}

// Plan is a full set of suggested trades with their tax accounting.
type Plan struct {
	ID            string    `json:"id"`
	GeneratedAt   time.Time `json:"generated_at"`
	Trades        []Trade   `json:"trades"`
	Turnover      float64   `json:"turnover"`
	TaxImpact     float64   `json:"tax_impact"`
	TaxSavings    float64   `json:"tax_savings"`
	RemainingCash float64   `json:"remaining_cash"`
}

// Rebalancer computes tax-aware rebalancing plans over position
// snapshots. It performs no I/O.
type Rebalancer struct {
	log zerolog.Logger
}

// NewRebalancer creates a new rebalancer
func NewRebalancer(log zerolog.Logger) *Rebalancer {
	return &Rebalancer{
		log: log.With().Str("component", "rebalancer").Logger(),
	}
}

type deviation struct {
	position domain.Position
	current  float64
	diff     float64
}

// SuggestRebalancing builds a trade plan for positions deviating from
// their target weight by more than the tolerance. Sells run first,
// most-deviated positions first, and the cash they raise funds the
// buys. A portfolio already at target yields an empty plan.
func (r *Rebalancer) SuggestRebalancing(positions []domain.Position, opts Options) (Plan, error) {
	if err := opts.validate(); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Trades:      []Trade{},
	}

	total := domain.TotalMarketValue(positions)
	if total <= 0 {
		return plan, nil
	}

	devs := make([]deviation, 0, len(positions))
	for _, p := range positions {
		current := p.MarketValue() / total
		devs = append(devs, deviation{
			position: p,
			current:  current,
			diff:     p.TargetWeight - current,
		})
	}
	sort.SliceStable(devs, func(i, j int) bool {
		return math.Abs(devs[i].diff) > math.Abs(devs[j].diff)
	})

	var proceeds float64
	for _, d := range devs {
		if d.diff >= -opts.Tolerance {
			continue
		}
		sell := r.sellSuggestion(d.position, math.Abs(d.diff)*total, opts)
		if sell == nil {
			continue
		}
		plan.Trades = append(plan.Trades, *sell)
		plan.TaxImpact += sell.TaxImpact
		proceeds += sell.Value
	}

	cash := proceeds
	for _, d := range devs {
		if d.diff <= opts.Tolerance || d.position.CurrentPrice <= 0 {
			continue
		}
		value := math.Min(d.diff*total, cash)
		if value <= 0 {
			continue
		}
		plan.Trades = append(plan.Trades, Trade{
			Action: ActionBuy,
			Symbol: d.position.Symbol,
			Shares: value / d.position.CurrentPrice,
			Value:  value,
		})
		cash -= value
	}

	plan.RemainingCash = cash
	plan.TaxSavings = math.Max(0, proceeds*opts.ShortTermRate-plan.TaxImpact)
	for _, t := range plan.Trades {
		plan.Turnover += t.Value
	}

	r.log.Debug().
		Str("plan_id", plan.ID).
		Int("trades", len(plan.Trades)).
		Float64("tax_impact", plan.TaxImpact).
		Msg("Rebalance plan built")

	return plan, nil
}

// sellSuggestion picks lots to cover targetValue of sales: loss lots
// first (largest percentage loss first), then gain lots by the
// tax-sensitivity-weighted score. Lots split when partial shares cover
// the remainder. A position without lots sells nothing.
func (r *Rebalancer) sellSuggestion(p domain.Position, targetValue float64, opts Options) *Trade {
	if len(p.Lots) == 0 || p.CurrentPrice <= 0 {
		return nil
	}

	price := p.CurrentPrice
	var losses, gains []domain.TaxLot
	for _, lot := range p.Lots {
		if lot.CostBasis > price {
			losses = append(losses, lot)
		} else {
			gains = append(gains, lot)
		}
	}
	sort.SliceStable(losses, func(i, j int) bool {
		return losses[i].GainRatio(price) < losses[j].GainRatio(price)
	})
	sort.SliceStable(gains, func(i, j int) bool {
		return sellScore(gains[i], price, opts) < sellScore(gains[j], price, opts)
	})

	ordered := make([]domain.TaxLot, 0, len(p.Lots))
	ordered = append(ordered, losses...)
	ordered = append(ordered, gains...)

	trade := Trade{Action: ActionSell, Symbol: p.Symbol}
	remaining := targetValue / price
	for _, lot := range ordered {
		if remaining <= 0 {
			break
		}
		shares := math.Min(remaining, lot.Shares)
		gain := (price - lot.CostBasis) * shares
		sale := LotSale{
			LotID:      lot.ID,
			Shares:     shares,
			CostBasis:  lot.CostBasis,
			IsLongTerm: lot.IsLongTerm,
			Gain:       gain,
			TaxImpact:  gain * taxRate(lot, opts),
		}
		trade.Lots = append(trade.Lots, sale)
		trade.Shares += shares
		trade.Value += shares * price
		trade.TaxImpact += sale.TaxImpact
		remaining -= shares
	}

	if len(trade.Lots) == 0 {
		return nil
	}
	return &trade
}

// sellScore orders gain lots for selling. Short-term gains count double
// so a tax-sensitive run prefers long-term and smaller gains.
func sellScore(lot domain.TaxLot, price float64, opts Options) float64 {
	mult := 2.0
	if lot.IsLongTerm {
		mult = 1.0
	}
	return lot.GainRatio(price) * mult * opts.TaxSensitivity
}

func taxRate(lot domain.TaxLot, opts Options) float64 {
	if lot.IsLongTerm {
		return opts.LongTermRate
	}
	return opts.ShortTermRate
}
