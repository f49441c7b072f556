package formulas

// DrawdownStats summarizes the drawdown behaviour of a wealth curve.
// Drawdowns are reported as negative fractions (-0.25 = 25% below peak).
type DrawdownStats struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	AvgDrawdown     float64 `json:"avg_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	DrawdownDays    int     `json:"drawdown_days"` // days more than 5% below peak
	RecoveryDays    int     `json:"recovery_days"` // days more than 10% below peak
}

// drawdownSeries computes the drawdown at each point of a wealth curve:
// (value - running peak) / running peak.
func drawdownSeries(wealth []float64) []float64 {
	dd := make([]float64, len(wealth))
	if len(wealth) == 0 {
		return dd
	}

	peak := wealth[0]
	for i, v := range wealth {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd[i] = (v - peak) / peak
		}
	}
	return dd
}

// MaxDrawdown returns the most negative drawdown of a wealth curve, 0 for
// curves that never fall below their peak.
func MaxDrawdown(wealth []float64) float64 {
	min := 0.0
	for _, d := range drawdownSeries(wealth) {
		if d < min {
			min = d
		}
	}
	return min
}

// AnalyzeDrawdowns computes full drawdown statistics for a wealth curve
func AnalyzeDrawdowns(wealth []float64) DrawdownStats {
	dd := drawdownSeries(wealth)

	stats := DrawdownStats{}
	if len(dd) == 0 {
		return stats
	}

	var negSum float64
	var negCount int
	for _, d := range dd {
		if d < stats.MaxDrawdown {
			stats.MaxDrawdown = d
		}
		if d < 0 {
			negSum += d
			negCount++
		}
		if d < -0.05 {
			stats.DrawdownDays++
		}
		if d < -0.10 {
			stats.RecoveryDays++
		}
	}

	if negCount > 0 {
		stats.AvgDrawdown = negSum / float64(negCount)
	}
	stats.CurrentDrawdown = dd[len(dd)-1]

	return stats
}
