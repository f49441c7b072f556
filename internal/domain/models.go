// Package domain provides core domain models and types.
package domain

import (
	"sort"
	"time"
)

// PriceBar represents one day of OHLCV market data for a symbol.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// ReturnSeries is a time-ordered sequence of day-over-day percentage returns
// for one symbol. Dates and Returns are parallel slices; gaps (missing trading
// days) are simply absent rows. Cross-asset operations must align series by
// date, never by index.
type ReturnSeries struct {
	Symbol  string      `json:"symbol"`
	Dates   []time.Time `json:"dates"`
	Returns []float64   `json:"returns"`
}

// NewReturnSeries builds a return series from parallel date/return slices.
func NewReturnSeries(symbol string, dates []time.Time, returns []float64) (*ReturnSeries, error) {
	if len(dates) != len(returns) {
		return nil, NewDomainError("return_series", "dates and returns must have equal length")
	}
	return &ReturnSeries{Symbol: symbol, Dates: dates, Returns: returns}, nil
}

// Len returns the number of observations in the series.
func (s *ReturnSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Returns)
}

// dateKey normalizes a timestamp to its trading day.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// AlignSeries intersects the given return series by date and returns the
// sorted common dates plus a per-symbol slice of returns in that date order.
// Symbols with a nil series are skipped.
func AlignSeries(series map[string]*ReturnSeries) ([]time.Time, map[string][]float64) {
	type dated struct {
		date time.Time
		ret  float64
	}

	perSymbol := make(map[string]map[string]dated)
	for symbol, s := range series {
		if s == nil {
			continue
		}
		byDate := make(map[string]dated, len(s.Dates))
		for i, d := range s.Dates {
			byDate[dateKey(d)] = dated{date: d, ret: s.Returns[i]}
		}
		perSymbol[symbol] = byDate
	}

	if len(perSymbol) == 0 {
		return nil, map[string][]float64{}
	}

	// Intersect date keys across all symbols.
	var common map[string]time.Time
	for _, byDate := range perSymbol {
		if common == nil {
			common = make(map[string]time.Time, len(byDate))
			for k, v := range byDate {
				common[k] = v.date
			}
			continue
		}
		for k := range common {
			if _, ok := byDate[k]; !ok {
				delete(common, k)
			}
		}
	}

	keys := make([]string, 0, len(common))
	for k := range common {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		dates[i] = common[k]
	}

	aligned := make(map[string][]float64, len(perSymbol))
	for symbol, byDate := range perSymbol {
		row := make([]float64, len(keys))
		for i, k := range keys {
			row[i] = byDate[k].ret
		}
		aligned[symbol] = row
	}

	return dates, aligned
}
