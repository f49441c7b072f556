package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index
//
// RSI Formula:
//
//	RSI = 100 - (100 / (1 + RS))
//	where RS = Average Gain / Average Loss over N periods
//
// Returns the current RSI value (0-100) or nil if insufficient data.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)

	if len(rsi) > 0 && !math.IsNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// CalculateSMA calculates the simple moving average over the given period
// Returns the current value or nil if insufficient data.
func CalculateSMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}

	sma := talib.Sma(closes, period)

	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// RollingVolatility calculates the rolling annualized volatility of a daily
// return series. Each element is the standard deviation over the trailing
// window scaled by sqrt(252); the first window-1 elements are NaN.
func RollingVolatility(dailyReturns []float64, window int) []float64 {
	if len(dailyReturns) < window || window < 2 {
		return nil
	}

	stddev := talib.StdDev(dailyReturns, window, 1.0)

	annualized := make([]float64, len(stddev))
	factor := math.Sqrt(TradingDaysPerYear)
	for i, sd := range stddev {
		if i < window-1 {
			annualized[i] = math.NaN()
			continue
		}
		annualized[i] = sd * factor
	}

	return annualized
}

// CurrentRollingVolatility returns the latest rolling annualized volatility
// value, or nil if the series is shorter than the window.
func CurrentRollingVolatility(dailyReturns []float64, window int) *float64 {
	series := RollingVolatility(dailyReturns, window)
	if len(series) == 0 {
		return nil
	}

	last := series[len(series)-1]
	if math.IsNaN(last) {
		return nil
	}
	return &last
}
