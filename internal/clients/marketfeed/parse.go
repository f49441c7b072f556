package marketfeed

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// parseFloat64 parses feed numeric strings. The feed reports missing values
// as "None", "null", "-" or an empty string, and percentages with a
// trailing "%". Unparseable input yields 0.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" || s == "." {
		return 0
	}

	s = strings.TrimSuffix(s, "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseInt64 parses feed integer strings, tolerating scientific notation
// and decimal values.
func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" {
		return 0
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}

	return 0
}

// parseDate parses a feed date (YYYY-MM-DD). Invalid input yields the zero time.
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type dailyBarEntry struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailySeriesResponse struct {
	Series map[string]dailyBarEntry `json:"Time Series (Daily)"`
}

// parseDailySeries decodes a daily time series response into bars sorted
// newest first.
func parseDailySeries(body []byte) ([]DailyBar, error) {
	var resp dailySeriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse daily series: %w", err)
	}

	if len(resp.Series) == 0 {
		return nil, fmt.Errorf("daily series response contains no data")
	}

	bars := make([]DailyBar, 0, len(resp.Series))
	for dateStr, entry := range resp.Series {
		date := parseDate(dateStr)
		if date.IsZero() {
			continue
		}
		bars = append(bars, DailyBar{
			Date:   date,
			Open:   parseFloat64(entry.Open),
			High:   parseFloat64(entry.High),
			Low:    parseFloat64(entry.Low),
			Close:  parseFloat64(entry.Close),
			Volume: parseInt64(entry.Volume),
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.After(bars[j].Date)
	})

	return bars, nil
}

type globalQuoteResponse struct {
	Quote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// parseGlobalQuote decodes a latest-quote response.
func parseGlobalQuote(body []byte) (*Quote, error) {
	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse quote: %w", err)
	}

	if resp.Quote.Symbol == "" {
		return nil, fmt.Errorf("quote response contains no data")
	}

	return &Quote{
		Symbol:           resp.Quote.Symbol,
		Open:             parseFloat64(resp.Quote.Open),
		High:             parseFloat64(resp.Quote.High),
		Low:              parseFloat64(resp.Quote.Low),
		Price:            parseFloat64(resp.Quote.Price),
		Volume:           parseInt64(resp.Quote.Volume),
		LatestTradingDay: parseDate(resp.Quote.LatestTradingDay),
		PreviousClose:    parseFloat64(resp.Quote.PreviousClose),
		Change:           parseFloat64(resp.Quote.Change),
		ChangePercent:    parseFloat64(resp.Quote.ChangePercent),
	}, nil
}
