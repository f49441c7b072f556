package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vega/internal/domain"
)

func tradingDays(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

func series(t *testing.T, symbol string, start time.Time, returns ...float64) *domain.ReturnSeries {
	t.Helper()
	s, err := domain.NewReturnSeries(symbol, tradingDays(start, len(returns)), returns)
	require.NoError(t, err)
	return s
}

var seriesStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func TestAnalyze_SingleAssetMetrics(t *testing.T) {
	returns := map[string]*domain.ReturnSeries{
		"AAPL": series(t, "AAPL", seriesStart, 0.01, -0.02, 0.015, 0.005),
	}

	report, err := Analyze(map[string]float64{"AAPL": 1}, returns, Options{RiskFreeRate: 0.03})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Observations)
	assert.Equal(t, 1, report.Symbols)
	assert.InDelta(t, 1.0, report.Weights["AAPL"], 1e-9)

	assert.InDelta(t, 0.63, report.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0.246779, report.AnnualizedVolatility, 1e-6)
	assert.InDelta(t, 2.43132, report.SharpeRatio, 1e-4)
	// A single negative return leaves downside deviation undefined.
	assert.Zero(t, report.SortinoRatio)

	assert.InDelta(t, 0.01625, report.VaR95, 1e-9)
	assert.InDelta(t, 0.02, report.CVaR95, 1e-9)
	assert.InDelta(t, 0.023073, report.ParametricVaR95, 1e-5)
	assert.InDelta(t, 0.033659, report.ParametricVaR99, 1e-5)

	// No proxy: beta falls back to 1.0 and relative stats stay undefined.
	assert.InDelta(t, 1.0, report.Beta, 1e-9)
	assert.InDelta(t, 0.6, report.TreynorRatio, 1e-9)
	assert.Nil(t, report.InformationRatio)
	assert.Nil(t, report.RSquared)
	assert.Nil(t, report.MarketCorrelation)

	assert.InDelta(t, -0.028875, report.Stress.MarketCrash, 1e-9)
	assert.InDelta(t, 0.031091, report.Stress.HighVolatility, 1e-5)
	assert.InDelta(t, -0.01625, report.Stress.CorrelationBreakdown, 1e-9)
	assert.InDelta(t, -0.0222, report.Stress.LiquidityCrisis, 1e-9)
}

func TestAnalyze_DrawdownReport(t *testing.T) {
	returns := map[string]*domain.ReturnSeries{
		"X": series(t, "X", seriesStart, 0.1, -0.5, 0.2),
	}

	report, err := Analyze(nil, returns, Options{})
	require.NoError(t, err)

	assert.InDelta(t, -0.5, report.Drawdowns.MaxDrawdown, 1e-9)
	assert.InDelta(t, -0.45, report.Drawdowns.AvgDrawdown, 1e-9)
	assert.InDelta(t, -0.4, report.Drawdowns.CurrentDrawdown, 1e-9)
	assert.Equal(t, 2, report.Drawdowns.DrawdownDays)
	assert.Equal(t, 2, report.Drawdowns.RecoveryDays)
}

func TestAnalyze_WeightNormalization(t *testing.T) {
	returns := map[string]*domain.ReturnSeries{
		"A": series(t, "A", seriesStart, 0.02, 0.02, 0.02),
		"B": series(t, "B", seriesStart, -0.01, -0.01, -0.01),
	}

	// Weights 2:2 normalize to 0.5/0.5; the weight for the absent symbol C
	// is ignored.
	report, err := Analyze(map[string]float64{"A": 2, "B": 2, "C": 5}, returns, Options{})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.Weights["A"], 1e-9)
	assert.InDelta(t, 0.5, report.Weights["B"], 1e-9)
	// Portfolio daily return is 0.5*0.02 + 0.5*(-0.01) = 0.005.
	assert.InDelta(t, 0.005*252, report.AnnualizedReturn, 1e-9)
}

func TestAnalyze_EqualWeightsWhenEmpty(t *testing.T) {
	returns := map[string]*domain.ReturnSeries{
		"A": series(t, "A", seriesStart, 0.02, 0.02),
		"B": series(t, "B", seriesStart, 0.0, 0.0),
	}

	report, err := Analyze(nil, returns, Options{})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.Weights["A"], 1e-9)
	assert.InDelta(t, 0.5, report.Weights["B"], 1e-9)
	assert.InDelta(t, 0.01*252, report.AnnualizedReturn, 1e-9)
}

func TestAnalyze_AlignsByDateNotIndex(t *testing.T) {
	// A covers day 0..3, B covers day 1..4; only days 1..3 are common.
	a, err := domain.NewReturnSeries("A", tradingDays(seriesStart, 4), []float64{0.01, 0.02, 0.03, 0.04})
	require.NoError(t, err)
	b, err := domain.NewReturnSeries("B", tradingDays(seriesStart.AddDate(0, 0, 1), 4), []float64{0.02, 0.03, 0.04, 0.05})
	require.NoError(t, err)

	report, err := Analyze(nil, map[string]*domain.ReturnSeries{"A": a, "B": b}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Observations)
	assert.Equal(t, seriesStart.AddDate(0, 0, 1), report.Start)
	assert.Equal(t, seriesStart.AddDate(0, 0, 3), report.End)
	// Day 1 portfolio return: (0.02 + 0.02) / 2.
	assert.InDelta(t, (0.02+0.03+0.04+0.02+0.03+0.04)/6*252, report.AnnualizedReturn, 1e-9)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	_, err := Analyze(nil, map[string]*domain.ReturnSeries{}, Options{})
	assert.True(t, domain.IsInsufficientData(err))

	short := map[string]*domain.ReturnSeries{
		"A": series(t, "A", seriesStart, 0.01),
	}
	_, err = Analyze(nil, short, Options{})
	assert.True(t, domain.IsInsufficientData(err))

	// Disjoint dates leave no aligned observations.
	disjoint := map[string]*domain.ReturnSeries{
		"A": series(t, "A", seriesStart, 0.01, 0.02),
		"B": series(t, "B", seriesStart.AddDate(0, 1, 0), 0.01, 0.02),
	}
	_, err = Analyze(nil, disjoint, Options{})
	assert.True(t, domain.IsInsufficientData(err))
}

func TestAnalyze_InvalidWeights(t *testing.T) {
	returns := map[string]*domain.ReturnSeries{
		"A": series(t, "A", seriesStart, 0.01, 0.02),
	}

	_, err := Analyze(map[string]float64{"A": -1}, returns, Options{})
	assert.True(t, domain.IsDomainError(err))

	_, err = Analyze(map[string]float64{"A": 0}, returns, Options{})
	assert.True(t, domain.IsDomainError(err))
}

func TestAnalyze_BetaAgainstProxy(t *testing.T) {
	market := series(t, "SPY", seriesStart, 0.01, -0.01, 0.02, -0.005)
	doubled := make([]float64, len(market.Returns))
	for i, r := range market.Returns {
		doubled[i] = 2 * r
	}
	returns := map[string]*domain.ReturnSeries{
		"P": series(t, "P", seriesStart, doubled...),
	}

	report, err := Analyze(nil, returns, Options{MarketProxy: market})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, report.Beta, 1e-9)
	require.NotNil(t, report.RSquared)
	assert.InDelta(t, 1.0, *report.RSquared, 1e-9)
	require.NotNil(t, report.MarketCorrelation)
	assert.InDelta(t, 1.0, *report.MarketCorrelation, 1e-9)
	require.NotNil(t, report.UpMarketCorrelation)
	assert.InDelta(t, 1.0, *report.UpMarketCorrelation, 1e-9)
	require.NotNil(t, report.DownMarketCorrelation)
	assert.InDelta(t, 1.0, *report.DownMarketCorrelation, 1e-9)
	require.NotNil(t, report.InformationRatio)
}

func TestAnalyze_FlatProxyKeepsFallbackBeta(t *testing.T) {
	returns := map[string]*domain.ReturnSeries{
		"P": series(t, "P", seriesStart, 0.01, -0.01, 0.02),
	}
	flat := series(t, "SPY", seriesStart, 0.0, 0.0, 0.0)

	report, err := Analyze(nil, returns, Options{MarketProxy: flat})
	require.NoError(t, err)

	// Zero market variance: beta keeps its 1.0 fallback.
	assert.InDelta(t, 1.0, report.Beta, 1e-9)
	assert.Nil(t, report.RSquared)
}
