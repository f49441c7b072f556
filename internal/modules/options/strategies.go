package options

import (
	"github.com/aristath/vega/internal/domain"
)

// CoveredCallAnalysis describes selling one call against a long stock
// position. Profit figures are per share at expiration; MaxLoss assumes
// the underlying goes to zero.
type CoveredCallAnalysis struct {
	Premium           float64        `json:"premium"`
	MaxProfit         float64        `json:"max_profit"`
	MaxLoss           float64        `json:"max_loss"`
	Breakeven         float64        `json:"breakeven"`
	Yield             float64        `json:"yield"`
	AnnualizedYield   float64        `json:"annualized_yield"`
	Greeks            *domain.Greeks `json:"greeks"`
	ProbabilityProfit float64        `json:"probability_profit"`
}

// AnalyzeCoveredCall evaluates writing a call at the given strike against
// stock held at spot. premium is the per-share credit received, typically
// the contract mid price. Yield is the premium as a percentage of spot;
// AnnualizedYield scales it by 1/T.
func AnalyzeCoveredCall(spot, strike, timeToExpiryYears, volatility, riskFreeRate, premium float64) (CoveredCallAnalysis, error) {
	if premium < 0 {
		return CoveredCallAnalysis{}, domain.NewDomainError("covered_call", "premium must be non-negative")
	}
	if timeToExpiryYears <= 0 {
		return CoveredCallAnalysis{}, domain.NewDomainError("covered_call", "time to expiry must be positive")
	}

	quote, err := PriceAndGreeks(spot, strike, timeToExpiryYears, volatility, riskFreeRate, domain.OptionTypeCall)
	if err != nil {
		return CoveredCallAnalysis{}, err
	}

	probability, err := ProbabilityOfProfit(spot, strike, timeToExpiryYears, volatility, riskFreeRate, domain.OptionTypeCall)
	if err != nil {
		return CoveredCallAnalysis{}, err
	}

	yield := premium / spot * 100

	return CoveredCallAnalysis{
		Premium:           premium,
		MaxProfit:         premium + (strike - spot),
		MaxLoss:           spot - premium,
		Breakeven:         spot - premium,
		Yield:             yield,
		AnnualizedYield:   yield / timeToExpiryYears,
		Greeks:            quote.Greeks,
		ProbabilityProfit: probability,
	}, nil
}
