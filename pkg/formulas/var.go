package formulas

// HistoricalVaR calculates value-at-risk from the empirical return
// distribution, reported as a positive loss magnitude
//
// Formula:
//
//	VaR(c) = -Percentile(returns, 1-c)
//
// e.g. confidence 0.95 reads the 5th percentile of daily returns.
func HistoricalVaR(dailyReturns []float64, confidence float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	v := -Percentile(dailyReturns, 1-confidence)
	if v < 0 {
		return 0
	}
	return v
}

// ConditionalVaR calculates expected shortfall: the mean of the returns at
// or below the VaR cutoff, as a positive loss magnitude.
func ConditionalVaR(dailyReturns []float64, confidence float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	cutoff := Percentile(dailyReturns, 1-confidence)

	var sum float64
	var count int
	for _, r := range dailyReturns {
		if r <= cutoff {
			sum += r
			count++
		}
	}
	if count == 0 {
		return 0
	}

	v := -(sum / float64(count))
	if v < 0 {
		return 0
	}
	return v
}

// ParametricVaR calculates value-at-risk under a normal-returns assumption,
// as a positive loss magnitude
//
// Formula:
//
//	VaR(z) = z×σ - μ
//
// z = 1.645 for 95% confidence, 2.326 for 99%.
func ParametricVaR(dailyReturns []float64, z float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}

	v := z*StdDev(dailyReturns) - Mean(dailyReturns)
	if v < 0 {
		return 0
	}
	return v
}
