package rebalancing

import (
	"fmt"
	"time"

	"github.com/aristath/vega/internal/domain"
)

// nearLongTermDays is how far ahead a lot's long-term date may lie for
// it to be worth holding.
const nearLongTermDays = 30

// lowBracketTax is the projected realized tax under which gain
// harvesting becomes worth considering.
const lowBracketTax = 1000.0

// GainBuckets splits an amount into short and long-term components.
type GainBuckets struct {
	ShortTerm float64 `json:"short_term"`
	LongTerm  float64 `json:"long_term"`
}

func (g GainBuckets) total() float64 { return g.ShortTerm + g.LongTerm }

// TaxProjection estimates the year-end liability. Realized buckets stay
// zero until a trade ledger exists; the unrealized buckets show what
// liquidating today would cost.
type TaxProjection struct {
	RealizedGains          GainBuckets `json:"realized_gains"`
	UnrealizedGains        GainBuckets `json:"unrealized_gains"`
	ProjectedTax           GainBuckets `json:"projected_tax"`
	PotentialTaxUnrealized GainBuckets `json:"potential_tax_unrealized"`
}

// HarvestRecommendation is a concrete loss-harvest candidate.
type HarvestRecommendation struct {
	Symbol         string    `json:"symbol"`
	LotID          string    `json:"lot_id,omitempty"`
	Shares         float64   `json:"shares"`
	CostBasis      float64   `json:"cost_basis"`
	UnrealizedLoss float64   `json:"unrealized_loss"`
	TaxSavings     float64   `json:"tax_savings"`
	WashSaleDate   time.Time `json:"wash_sale_date"`
}

// NearLongTermLot is a short-term lot that reaches long-term status
// within the next 30 days.
type NearLongTermLot struct {
	Symbol     string    `json:"symbol"`
	LotID      string    `json:"lot_id,omitempty"`
	Shares     float64   `json:"shares"`
	LongTermOn time.Time `json:"long_term_on"`
}

// ActionItem is one prioritized year-end move.
type ActionItem struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Detail   string `json:"detail"`
	Deadline string `json:"deadline"`
}

// YearEndPlan bundles harvest candidates, wash-sale risks and the
// projected liability into prioritized action items.
type YearEndPlan struct {
	HarvestRecommendations []HarvestRecommendation `json:"harvest_recommendations"`
	WashSaleRisks          []WashSaleRisk          `json:"wash_sale_risks"`
	NearLongTerm           []NearLongTermLot       `json:"near_long_term"`
	TaxProjection          TaxProjection           `json:"tax_projection"`
	ActionItems            []ActionItem            `json:"action_items"`
}

// PlanYearEnd generates year-end tax planning recommendations as of the
// given date.
func (r *Rebalancer) PlanYearEnd(positions []domain.Position, asOf time.Time, opts Options) (YearEndPlan, error) {
	if err := opts.validate(); err != nil {
		return YearEndPlan{}, err
	}

	plan := YearEndPlan{
		HarvestRecommendations: []HarvestRecommendation{},
		NearLongTerm:           []NearLongTermLot{},
	}

	for _, p := range positions {
		for _, lot := range p.Lots {
			gain := lot.UnrealizedGain(p.CurrentPrice)
			if gain < -harvestThreshold {
				plan.HarvestRecommendations = append(plan.HarvestRecommendations, HarvestRecommendation{
					Symbol:         p.Symbol,
					LotID:          lot.ID,
					Shares:         lot.Shares,
					CostBasis:      lot.CostBasis,
					UnrealizedLoss: -gain,
					TaxSavings:     -gain * taxRate(lot, opts),
					WashSaleDate:   lot.PurchaseDate.AddDate(0, 0, washSaleWindowDays),
				})
			}

			longTermOn := lot.PurchaseDate.AddDate(1, 0, 0)
			if !lot.LongTermAt(asOf) && !longTermOn.After(asOf.AddDate(0, 0, nearLongTermDays)) {
				plan.NearLongTerm = append(plan.NearLongTerm, NearLongTermLot{
					Symbol:     p.Symbol,
					LotID:      lot.ID,
					Shares:     lot.Shares,
					LongTermOn: longTermOn,
				})
			}
		}
	}

	plan.WashSaleRisks = r.CheckWashSales(positions, asOf)
	plan.TaxProjection = projectLiability(positions, opts)
	plan.ActionItems = actionItems(plan)
	return plan, nil
}

func projectLiability(positions []domain.Position, opts Options) TaxProjection {
	var proj TaxProjection
	for _, p := range positions {
		for _, lot := range p.Lots {
			gain := lot.UnrealizedGain(p.CurrentPrice)
			if lot.IsLongTerm {
				proj.UnrealizedGains.LongTerm += gain
			} else {
				proj.UnrealizedGains.ShortTerm += gain
			}
		}
	}

	proj.ProjectedTax = GainBuckets{
		ShortTerm: proj.RealizedGains.ShortTerm * opts.ShortTermRate,
		LongTerm:  proj.RealizedGains.LongTerm * opts.LongTermRate,
	}
	proj.PotentialTaxUnrealized = GainBuckets{
		ShortTerm: proj.UnrealizedGains.ShortTerm * opts.ShortTermRate,
		LongTerm:  proj.UnrealizedGains.LongTerm * opts.LongTermRate,
	}
	return proj
}

func actionItems(plan YearEndPlan) []ActionItem {
	items := []ActionItem{}

	if n := len(plan.HarvestRecommendations); n > 0 {
		items = append(items, ActionItem{
			Priority: "high",
			Action:   "harvest_losses",
			Detail:   fmt.Sprintf("%d lots hold harvestable losses", n),
			Deadline: "December 31",
		})
	}
	if plan.TaxProjection.ProjectedTax.total() < lowBracketTax {
		items = append(items, ActionItem{
			Priority: "medium",
			Action:   "harvest_gains",
			Detail:   "Projected realized tax is low; consider realizing gains at the current bracket",
			Deadline: "December 31",
		})
	}
	if n := len(plan.NearLongTerm); n > 0 {
		items = append(items, ActionItem{
			Priority: "medium",
			Action:   "hold_for_long_term",
			Detail:   fmt.Sprintf("%d lots reach long-term status within %d days", n, nearLongTermDays),
			Deadline: "Varies",
		})
	}
	return items
}
