package risk

import (
	"github.com/aristath/vega/internal/domain"
)

// buildPortfolioSeries intersects the per-symbol series by date and
// collapses them into one weighted daily return series.
func buildPortfolioSeries(weights map[string]float64, returns map[string]*domain.ReturnSeries) (*domain.ReturnSeries, map[string]float64, error) {
	present := make(map[string]*domain.ReturnSeries)
	for symbol, series := range returns {
		if series.Len() > 0 {
			present[symbol] = series
		}
	}
	if len(present) == 0 {
		return nil, nil, domain.NewInsufficientDataError("risk_analysis", 2, 0)
	}

	normalized, err := normalizeWeights(weights, present)
	if err != nil {
		return nil, nil, err
	}

	dates, aligned := domain.AlignSeries(present)
	if len(dates) < 2 {
		return nil, nil, domain.NewInsufficientDataError("risk_analysis", 2, len(dates))
	}

	daily := make([]float64, len(dates))
	for symbol, row := range aligned {
		w := normalized[symbol]
		if w == 0 {
			continue
		}
		for i, r := range row {
			daily[i] += w * r
		}
	}

	portfolio, err := domain.NewReturnSeries("PORTFOLIO", dates, daily)
	if err != nil {
		return nil, nil, err
	}
	return portfolio, normalized, nil
}

// normalizeWeights scales the given weights to sum to 1 over the symbols
// that carry data. Symbols without a weight get 0; an empty map means
// equal weighting.
func normalizeWeights(weights map[string]float64, present map[string]*domain.ReturnSeries) (map[string]float64, error) {
	normalized := make(map[string]float64, len(present))

	if len(weights) == 0 {
		equal := 1.0 / float64(len(present))
		for symbol := range present {
			normalized[symbol] = equal
		}
		return normalized, nil
	}

	var sum float64
	for symbol := range present {
		w := weights[symbol]
		if w < 0 {
			return nil, domain.NewDomainError("risk_analysis", "weights must be non-negative")
		}
		sum += w
	}
	if sum <= 0 {
		return nil, domain.NewDomainError("risk_analysis", "weights must sum to a positive value")
	}

	for symbol := range present {
		normalized[symbol] = weights[symbol] / sum
	}
	return normalized, nil
}
