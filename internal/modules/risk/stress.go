package risk

import (
	"github.com/aristath/vega/pkg/formulas"
)

// runStressScenarios replays historical shocks against the daily series:
// a crash amplifies every return 1.5x and takes the 1st percentile, a
// liquidity crisis amplifies 1.2x and takes the 2nd, correlation breakdown
// is the raw 5th percentile, and the volatility shock doubles daily sigma.
func runStressScenarios(daily []float64) StressScenarios {
	if len(daily) == 0 {
		return StressScenarios{}
	}

	crash := make([]float64, len(daily))
	crisis := make([]float64, len(daily))
	for i, r := range daily {
		crash[i] = r * 1.5
		crisis[i] = r * 1.2
	}

	return StressScenarios{
		MarketCrash:          formulas.Percentile(crash, 0.01),
		HighVolatility:       2 * formulas.StdDev(daily),
		CorrelationBreakdown: formulas.Percentile(daily, 0.05),
		LiquidityCrisis:      formulas.Percentile(crisis, 0.02),
	}
}
