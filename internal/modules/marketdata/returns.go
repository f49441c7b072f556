package marketdata

import (
	"time"

	"github.com/aristath/vega/internal/domain"
)

// BuildReturns converts daily bars into a close-to-close return series.
// Bars must be in ascending date order. Each return is dated by the later
// of the two trading days; non-positive closes are skipped.
func BuildReturns(symbol string, bars []domain.PriceBar) *domain.ReturnSeries {
	dates := make([]time.Time, 0, len(bars))
	returns := make([]float64, 0, len(bars))

	var prevClose float64
	for _, bar := range bars {
		if bar.Close <= 0 {
			continue
		}
		if prevClose > 0 {
			dates = append(dates, bar.Date)
			returns = append(returns, (bar.Close-prevClose)/prevClose)
		}
		prevClose = bar.Close
	}

	return &domain.ReturnSeries{Symbol: symbol, Dates: dates, Returns: returns}
}
