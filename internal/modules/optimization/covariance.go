package optimization

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/pkg/formulas"
)

// assetModel is the estimation input for one solve: annualized mean
// returns and the annualized sample covariance matrix over the
// date-aligned observation window. Symbols are sorted so repeated solves
// over the same input are deterministic.
type assetModel struct {
	symbols      []string
	mu           []float64
	cov          [][]float64
	observations int
}

// buildAssetModel aligns the series by date and estimates per-asset means
// and the pairwise sample covariance matrix, both annualized. Returns nil
// when fewer than two aligned observations exist.
func buildAssetModel(returns map[string]*domain.ReturnSeries) *assetModel {
	present := make(map[string]*domain.ReturnSeries)
	for symbol, series := range returns {
		if series.Len() > 0 {
			present[symbol] = series
		}
	}
	if len(present) == 0 {
		return nil
	}

	dates, aligned := domain.AlignSeries(present)
	if len(dates) < 2 {
		return nil
	}

	symbols := make([]string, 0, len(aligned))
	for symbol := range aligned {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	n := len(symbols)
	mu := make([]float64, n)
	cov := make([][]float64, n)
	for i, symbol := range symbols {
		mu[i] = stat.Mean(aligned[symbol], nil) * formulas.TradingDaysPerYear
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(aligned[symbols[i]], aligned[symbols[j]], nil) * formulas.TradingDaysPerYear
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	return &assetModel{
		symbols:      symbols,
		mu:           mu,
		cov:          cov,
		observations: len(dates),
	}
}

// degenerate reports whether the model cannot support a Sharpe solve:
// NaN in the estimates, or a covariance matrix with no variation at all.
func (m *assetModel) degenerate() bool {
	allZero := true
	for i := range m.mu {
		if math.IsNaN(m.mu[i]) {
			return true
		}
		for j := range m.cov[i] {
			if math.IsNaN(m.cov[i][j]) {
				return true
			}
			if m.cov[i][j] != 0 {
				allZero = false
			}
		}
	}
	return allZero
}

// portfolioMoments returns the annualized portfolio return and variance
// for the given weight vector, in symbols order.
func (m *assetModel) portfolioMoments(w []float64) (ret, variance float64) {
	for i := range m.symbols {
		ret += m.mu[i] * w[i]
		for j := range m.symbols {
			variance += w[i] * w[j] * m.cov[i][j]
		}
	}
	return ret, variance
}

// correlations derives the pairwise correlation matrix from the
// covariance estimates. Pairs involving a zero-variance asset are
// reported as 0.
func (m *assetModel) correlations() [][]float64 {
	n := len(m.symbols)
	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		corr[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var c float64
			if den := math.Sqrt(m.cov[i][i] * m.cov[j][j]); den > 0 {
				c = m.cov[i][j] / den
			}
			corr[i][j] = c
			corr[j][i] = c
		}
	}
	return corr
}

// usableSymbols lists the symbols carrying at least one observation,
// sorted.
func usableSymbols(returns map[string]*domain.ReturnSeries) []string {
	symbols := make([]string, 0, len(returns))
	for symbol, series := range returns {
		if series.Len() > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}
