package domain

import (
	"fmt"
	"time"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// Valid reports whether the option type is one of the known values.
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// OptionContract is a single quoted option. Immutable once retrieved; one
// contract exists per (symbol, expiration, strike, type).
type OptionContract struct {
	Expiration        time.Time  `json:"expiration"`
	Symbol            string     `json:"symbol"`
	OptionType        OptionType `json:"option_type"`
	Strike            float64    `json:"strike"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	OpenInterest      int64      `json:"open_interest"`
	Volume            int64      `json:"volume"`
}

// NewOptionContract validates and builds an option contract.
func NewOptionContract(
	symbol string,
	expiration time.Time,
	strike float64,
	optionType OptionType,
	bid, ask, impliedVolatility float64,
	openInterest, volume int64,
) (OptionContract, error) {
	switch {
	case strike <= 0:
		return OptionContract{}, NewDomainError("option_contract", fmt.Sprintf("strike must be positive, got %v", strike))
	case !optionType.Valid():
		return OptionContract{}, NewDomainError("option_contract", fmt.Sprintf("unknown option type %q", optionType))
	case bid < 0:
		return OptionContract{}, NewDomainError("option_contract", fmt.Sprintf("bid must be non-negative, got %v", bid))
	case ask < bid:
		return OptionContract{}, NewDomainError("option_contract", fmt.Sprintf("ask %v below bid %v", ask, bid))
	case impliedVolatility <= 0:
		return OptionContract{}, NewDomainError("option_contract", fmt.Sprintf("implied volatility must be positive, got %v", impliedVolatility))
	case openInterest < 0:
		return OptionContract{}, NewDomainError("option_contract", "open interest must be non-negative")
	case volume < 0:
		return OptionContract{}, NewDomainError("option_contract", "volume must be non-negative")
	}

	return OptionContract{
		Symbol:            symbol,
		Expiration:        expiration,
		Strike:            strike,
		OptionType:        optionType,
		Bid:               bid,
		Ask:               ask,
		ImpliedVolatility: impliedVolatility,
		OpenInterest:      openInterest,
		Volume:            volume,
	}, nil
}

// Moneyness returns (strike / spot) - 1 for the given underlying spot.
func (c OptionContract) Moneyness(spot float64) float64 {
	return c.Strike/spot - 1
}

// MidPrice returns the bid/ask midpoint.
func (c OptionContract) MidPrice() float64 {
	return (c.Bid + c.Ask) / 2
}

// OptionsChain is the full set of contracts for one underlying, spanning
// multiple expirations and strikes. All contracts share the same spot price
// snapshot, which Greeks aggregation is valued against.
type OptionsChain struct {
	Underlying string           `json:"underlying"`
	Spot       float64          `json:"spot"`
	Contracts  []OptionContract `json:"contracts"`
}

// NewOptionsChain validates and builds a chain. An empty contract list is
// legal; analyzing it yields an explicit empty analysis.
func NewOptionsChain(underlying string, spot float64, contracts []OptionContract) (OptionsChain, error) {
	if spot <= 0 {
		return OptionsChain{}, NewDomainError("options_chain", fmt.Sprintf("spot must be positive, got %v", spot))
	}
	return OptionsChain{Underlying: underlying, Spot: spot, Contracts: contracts}, nil
}

// Greeks holds the option price sensitivities.
// Delta is in [0, 1] for calls and [-1, 0] for puts; gamma and vega are
// non-negative, all up to numerical tolerance.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}
