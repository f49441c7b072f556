package rebalancing

import (
	"math"

	"github.com/aristath/vega/internal/domain"
)

// harvestThreshold is the per-lot unrealized loss above which a lot
// counts as a harvesting opportunity.
const harvestThreshold = 5000.0

// Tax-efficiency score component weights.
const (
	longTermWeight    = 0.4
	lossHarvestWeight = 0.4
	opportunityWeight = 0.2
)

// HarvestOpportunity is a lot whose unrealized loss clears the harvest
// threshold.
type HarvestOpportunity struct {
	Symbol           string  `json:"symbol"`
	LotID            string  `json:"lot_id,omitempty"`
	Shares           float64 `json:"shares"`
	PotentialHarvest float64 `json:"potential_harvest"`
}

// TaxEfficiency summarizes how tax-friendly the current holdings are.
type TaxEfficiency struct {
	UnrealizedGains   float64              `json:"unrealized_gains"`
	UnrealizedLosses  float64              `json:"unrealized_losses"`
	LongTermGainShare float64              `json:"long_term_gain_share"`
	Opportunities     []HarvestOpportunity `json:"harvesting_opportunities"`
	Score             float64              `json:"tax_efficiency_score"`
}

// AnalyzeTaxEfficiency scores the portfolio 0-100: how much of the
// unrealized gain is long-term, how much loss is available to harvest,
// and how many large loss lots sit unharvested.
func (r *Rebalancer) AnalyzeTaxEfficiency(positions []domain.Position) TaxEfficiency {
	result := TaxEfficiency{Opportunities: []HarvestOpportunity{}}

	total := domain.TotalMarketValue(positions)
	var totalGains, longTermGains float64

	for _, p := range positions {
		for _, lot := range p.Lots {
			gain := lot.UnrealizedGain(p.CurrentPrice)
			if gain > 0 {
				result.UnrealizedGains += gain
				totalGains += gain
				if lot.IsLongTerm {
					longTermGains += gain
				}
				continue
			}
			loss := -gain
			result.UnrealizedLosses += loss
			if loss > harvestThreshold {
				result.Opportunities = append(result.Opportunities, HarvestOpportunity{
					Symbol:           p.Symbol,
					LotID:            lot.ID,
					Shares:           lot.Shares,
					PotentialHarvest: loss,
				})
			}
		}
	}

	if totalGains > 0 {
		result.LongTermGainShare = longTermGains / totalGains
	}

	lossRatio := 0.0
	if total > 0 {
		lossRatio = result.UnrealizedLosses / total
	}
	result.Score = efficiencyScore(result.LongTermGainShare, lossRatio, len(result.Opportunities))
	return result
}

// efficiencyScore weighs long-term gain share, harvestable loss depth
// (capped) and the count of unharvested opportunities (fewer is
// better).
func efficiencyScore(longTermShare, lossRatio float64, opportunities int) float64 {
	longTermScore := longTermShare * 100
	lossScore := math.Min(lossRatio*200, 100)
	opportunityScore := math.Max(0, 100-float64(opportunities)*10)
	return longTermScore*longTermWeight +
		lossScore*lossHarvestWeight +
		opportunityScore*opportunityWeight
}
