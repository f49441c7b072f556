package optimization

// Diversification summarizes how spread out the solved portfolio is.
// HerfindahlIndex is the sum of squared weights; EffectivePositions is
// its reciprocal, the number of equally-weighted positions with the same
// concentration.
type Diversification struct {
	AvgCorrelation     float64 `json:"avg_correlation"`
	HerfindahlIndex    float64 `json:"herfindahl_index"`
	EffectivePositions float64 `json:"effective_positions"`
}

// diversificationReport averages the off-diagonal correlations and
// computes the concentration metrics over the final weights. With fewer
// than two assets the average correlation is 0 and concentration
// defaults to a single effective position.
func diversificationReport(corr [][]float64, weights map[string]float64) Diversification {
	report := Diversification{HerfindahlIndex: 1, EffectivePositions: 1}

	if n := len(corr); n >= 2 {
		var total float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					total += corr[i][j]
				}
			}
		}
		report.AvgCorrelation = total / float64(n*(n-1))
	}

	var herfindahl float64
	for _, w := range weights {
		herfindahl += w * w
	}
	if herfindahl > 0 {
		report.HerfindahlIndex = herfindahl
		report.EffectivePositions = 1 / herfindahl
	}

	return report
}
