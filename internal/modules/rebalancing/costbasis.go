package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/vega/internal/domain"
)

// Cost basis method names.
const (
	MethodFIFO        = "fifo"
	MethodLIFO        = "lifo"
	MethodSpecificLot = "specific_lot"
	MethodAverage     = "average"
)

// methodOrder fixes the comparison order so ties recommend
// deterministically.
var methodOrder = []string{MethodFIFO, MethodLIFO, MethodSpecificLot, MethodAverage}

// MethodGains is the realized gain split one cost basis method produces
// for a sale.
type MethodGains struct {
	ShortTermGain float64 `json:"short_term_gain"`
	LongTermGain  float64 `json:"long_term_gain"`
	TotalTax      float64 `json:"total_tax"`
}

// CostBasisComparison compares lot selection methods for one sale.
type CostBasisComparison struct {
	Symbol       string                 `json:"symbol"`
	SharesToSell float64                `json:"shares_to_sell"`
	Methods      map[string]MethodGains `json:"methods"`
	Recommended  string                 `json:"recommended_method"`
}

// CompareCostBasisMethods computes the tax outcome of selling
// sharesToSell under FIFO, LIFO, lowest-tax specific lots and average
// cost, and recommends the cheapest method.
func (r *Rebalancer) CompareCostBasisMethods(p domain.Position, sharesToSell float64, opts Options) (CostBasisComparison, error) {
	if err := opts.validate(); err != nil {
		return CostBasisComparison{}, err
	}
	if sharesToSell <= 0 {
		return CostBasisComparison{}, domain.NewDomainError("rebalancing",
			fmt.Sprintf("shares to sell must be positive, got %v", sharesToSell))
	}
	if held := p.Shares(); sharesToSell > held {
		return CostBasisComparison{}, domain.NewDomainError("rebalancing",
			fmt.Sprintf("cannot sell %v shares of %s, position holds %v", sharesToSell, p.Symbol, held))
	}

	price := p.CurrentPrice
	fifo := sortedLots(p.Lots, func(a, b domain.TaxLot) bool {
		return a.PurchaseDate.Before(b.PurchaseDate)
	})
	lifo := sortedLots(p.Lots, func(a, b domain.TaxLot) bool {
		return a.PurchaseDate.After(b.PurchaseDate)
	})
	specific := sortedLots(p.Lots, func(a, b domain.TaxLot) bool {
		return perShareTax(a, price, opts) < perShareTax(b, price, opts)
	})

	methods := map[string]MethodGains{
		MethodFIFO:        gainsByLots(fifo, price, sharesToSell, opts),
		MethodLIFO:        gainsByLots(lifo, price, sharesToSell, opts),
		MethodSpecificLot: gainsByLots(specific, price, sharesToSell, opts),
		MethodAverage:     averageGains(p, sharesToSell, opts),
	}

	return CostBasisComparison{
		Symbol:       p.Symbol,
		SharesToSell: sharesToSell,
		Methods:      methods,
		Recommended:  recommendMethod(methods),
	}, nil
}

func sortedLots(lots []domain.TaxLot, less func(a, b domain.TaxLot) bool) []domain.TaxLot {
	out := make([]domain.TaxLot, len(lots))
	copy(out, lots)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// perShareTax is the tax owed on selling one share of the lot at the
// given price. Negative for loss lots.
func perShareTax(lot domain.TaxLot, price float64, opts Options) float64 {
	return (price - lot.CostBasis) * taxRate(lot, opts)
}

// gainsByLots walks the ordered lots, consuming shares until the sale
// is covered, and buckets gains by holding period.
func gainsByLots(ordered []domain.TaxLot, price, sharesToSell float64, opts Options) MethodGains {
	var g MethodGains
	remaining := sharesToSell
	for _, lot := range ordered {
		if remaining <= 0 {
			break
		}
		shares := math.Min(remaining, lot.Shares)
		gain := (price - lot.CostBasis) * shares
		if lot.IsLongTerm {
			g.LongTermGain += gain
		} else {
			g.ShortTermGain += gain
		}
		remaining -= shares
	}
	g.TotalTax = g.ShortTermGain*opts.ShortTermRate + g.LongTermGain*opts.LongTermRate
	return g
}

// averageGains prices every sold share at the position's average cost;
// the long/short split follows the position's share mix.
func averageGains(p domain.Position, sharesToSell float64, opts Options) MethodGains {
	totalShares := p.Shares()
	if totalShares == 0 {
		return MethodGains{}
	}

	var longShares float64
	for _, lot := range p.Lots {
		if lot.IsLongTerm {
			longShares += lot.Shares
		}
	}

	gainPerShare := p.CurrentPrice - p.AverageCost()
	soldLong := sharesToSell * (longShares / totalShares)
	soldShort := sharesToSell - soldLong

	g := MethodGains{
		ShortTermGain: gainPerShare * soldShort,
		LongTermGain:  gainPerShare * soldLong,
	}
	g.TotalTax = g.ShortTermGain*opts.ShortTermRate + g.LongTermGain*opts.LongTermRate
	return g
}

func recommendMethod(methods map[string]MethodGains) string {
	best := methodOrder[0]
	for _, name := range methodOrder[1:] {
		if methods[name].TotalTax < methods[best].TotalTax {
			best = name
		}
	}
	return best
}
