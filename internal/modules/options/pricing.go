// Package options implements the Black-Scholes-Merton pricing engine and the
// options chain analyzer.
package options

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/vega/internal/domain"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Quote is a priced contract. Greeks is nil for expired contracts, where
// only the intrinsic value is defined.
type Quote struct {
	Price   float64        `json:"price"`
	Greeks  *domain.Greeks `json:"greeks,omitempty"`
	Expired bool           `json:"expired"`
}

// PriceAndGreeks prices a European option with the Black-Scholes-Merton
// closed form
//
//	d1 = (ln(S/K) + (r + σ²/2)·T) / (σ√T)
//	d2 = d1 - σ√T
//
// Spot, strike and volatility must be positive; a non-positive time to
// expiry is not an error but yields the intrinsic value with Expired set
// and no Greeks. Callers that need Greeks must check expiry first.
func PriceAndGreeks(spot, strike, timeToExpiryYears, volatility, riskFreeRate float64, optionType domain.OptionType) (Quote, error) {
	if err := validatePricingInputs(spot, strike, volatility, optionType); err != nil {
		return Quote{}, err
	}

	if timeToExpiryYears <= 0 {
		return Quote{Price: intrinsicValue(spot, strike, optionType), Expired: true}, nil
	}

	sqrtT := math.Sqrt(timeToExpiryYears)
	d1 := (math.Log(spot/strike) + (riskFreeRate+0.5*volatility*volatility)*timeToExpiryYears) / (volatility * sqrtT)
	d2 := d1 - volatility*sqrtT

	discount := math.Exp(-riskFreeRate * timeToExpiryYears)
	pdfD1 := stdNormal.Prob(d1)

	greeks := &domain.Greeks{
		Gamma: pdfD1 / (spot * volatility * sqrtT),
		Vega:  spot * sqrtT * pdfD1,
	}

	var price float64
	switch optionType {
	case domain.OptionTypeCall:
		cdfD1 := stdNormal.CDF(d1)
		cdfD2 := stdNormal.CDF(d2)
		price = spot*cdfD1 - strike*discount*cdfD2
		greeks.Delta = cdfD1
		greeks.Theta = -spot*pdfD1*volatility/(2*sqrtT) - riskFreeRate*strike*discount*cdfD2
		greeks.Rho = strike * timeToExpiryYears * discount * cdfD2
	case domain.OptionTypePut:
		cdfNegD1 := stdNormal.CDF(-d1)
		cdfNegD2 := stdNormal.CDF(-d2)
		price = strike*discount*cdfNegD2 - spot*cdfNegD1
		greeks.Delta = stdNormal.CDF(d1) - 1
		greeks.Theta = -spot*pdfD1*volatility/(2*sqrtT) + riskFreeRate*strike*discount*cdfNegD2
		greeks.Rho = -strike * timeToExpiryYears * discount * cdfNegD2
	}

	return Quote{Price: price, Greeks: greeks}, nil
}

// ProbabilityOfProfit estimates the risk-neutral probability that the
// option finishes in the money: Φ(d2) for calls, Φ(-d2) for puts, with
// drift (r - σ²/2).
func ProbabilityOfProfit(spot, strike, timeToExpiryYears, volatility, riskFreeRate float64, optionType domain.OptionType) (float64, error) {
	if err := validatePricingInputs(spot, strike, volatility, optionType); err != nil {
		return 0, err
	}
	if timeToExpiryYears <= 0 {
		return 0, domain.NewDomainError("probability", "time to expiry must be positive")
	}

	d2 := (math.Log(spot/strike) + (riskFreeRate-0.5*volatility*volatility)*timeToExpiryYears) /
		(volatility * math.Sqrt(timeToExpiryYears))

	if optionType == domain.OptionTypeCall {
		return stdNormal.CDF(d2), nil
	}
	return stdNormal.CDF(-d2), nil
}

func validatePricingInputs(spot, strike, volatility float64, optionType domain.OptionType) error {
	if !optionType.Valid() {
		return domain.NewDomainError("price", "option type must be call or put")
	}
	if spot <= 0 {
		return domain.NewDomainError("price", "spot must be positive")
	}
	if strike <= 0 {
		return domain.NewDomainError("price", "strike must be positive")
	}
	if volatility <= 0 {
		return domain.NewDomainError("price", "volatility must be positive")
	}
	return nil
}

func intrinsicValue(spot, strike float64, optionType domain.OptionType) float64 {
	if optionType == domain.OptionTypeCall {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}
