package formulas

import (
	"math"
)

// SharpeRatio calculates the Sharpe ratio from annualized figures
//
// Formula:
//
//	Sharpe = (Annualized Return - Risk-free Rate) / Annualized Volatility
//
// Returns 0 when volatility is 0.
func SharpeRatio(annualizedReturn, annualizedVol, riskFreeRate float64) float64 {
	if annualizedVol == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / annualizedVol
}

// DownsideDeviation calculates the annualized standard deviation of the
// negative daily returns only. Returns 0 when fewer than two returns are
// negative.
func DownsideDeviation(dailyReturns []float64) float64 {
	var downside []float64
	for _, r := range dailyReturns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	return StdDev(downside) * math.Sqrt(TradingDaysPerYear)
}

// SortinoRatio calculates the Sortino ratio, the downside-deviation
// counterpart of Sharpe. Returns 0 when there is no downside volatility.
func SortinoRatio(annualizedReturn, riskFreeRate float64, dailyReturns []float64) float64 {
	dd := DownsideDeviation(dailyReturns)
	if dd == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / dd
}

// TreynorRatio calculates excess return per unit of market risk
//
// Formula:
//
//	Treynor = (Annualized Return - Risk-free Rate) / Beta
//
// Returns 0 when beta is 0.
func TreynorRatio(annualizedReturn, riskFreeRate, beta float64) float64 {
	if beta == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / beta
}

// InformationRatio calculates the annualized ratio of mean excess return
// over the benchmark to its tracking error
//
// Formula:
//
//	IR = sqrt(252) × mean(excess) / std(excess)
//
// Returns 0 when the tracking error is 0.
func InformationRatio(excessReturns []float64) float64 {
	sd := StdDev(excessReturns)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(TradingDaysPerYear) * Mean(excessReturns) / sd
}

// Beta calculates the regression beta of a series against the market
// Returns nil when the market variance is 0 or the series lengths differ.
func Beta(series, market []float64) *float64 {
	if len(series) != len(market) || len(series) < 2 {
		return nil
	}

	marketVar := Variance(market)
	if marketVar == 0 {
		return nil
	}

	beta := Covariance(series, market) / marketVar
	return &beta
}

// RSquared calculates the squared correlation of a series with the market
// Returns nil when either series is degenerate.
func RSquared(series, market []float64) *float64 {
	if len(series) != len(market) || len(series) < 2 {
		return nil
	}

	corr := Correlation(series, market)
	if math.IsNaN(corr) {
		return nil
	}

	r2 := corr * corr
	return &r2
}
