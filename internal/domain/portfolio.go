package domain

import (
	"fmt"
	"time"
)

// TaxLot is a discrete batch of shares acquired at one time and price,
// tracked separately for capital-gains purposes. Lots are immutable units of
// acquisition: a sell logically consumes or splits lots, it never rewrites
// cost basis.
type TaxLot struct {
	PurchaseDate time.Time `json:"purchase_date"`
	ID           string    `json:"id,omitempty"`
	Shares       float64   `json:"shares"`
	CostBasis    float64   `json:"cost_basis"`
	IsLongTerm   bool      `json:"is_long_term"`
}

// NewTaxLot validates and builds a tax lot. IsLongTerm is the caller's
// assertion that the holding period is at least one year at evaluation time.
func NewTaxLot(id string, shares, costBasis float64, purchaseDate time.Time, isLongTerm bool) (TaxLot, error) {
	if shares <= 0 {
		return TaxLot{}, NewDomainError("tax_lot", fmt.Sprintf("shares must be positive, got %v", shares))
	}
	if costBasis <= 0 {
		return TaxLot{}, NewDomainError("tax_lot", fmt.Sprintf("cost basis must be positive, got %v", costBasis))
	}
	return TaxLot{
		ID:           id,
		Shares:       shares,
		CostBasis:    costBasis,
		PurchaseDate: purchaseDate,
		IsLongTerm:   isLongTerm,
	}, nil
}

// UnrealizedGain returns the lot's total unrealized gain (negative for a
// loss) at the given price.
func (l TaxLot) UnrealizedGain(price float64) float64 {
	return (price - l.CostBasis) * l.Shares
}

// GainRatio returns the per-share gain relative to cost basis.
func (l TaxLot) GainRatio(price float64) float64 {
	return (price - l.CostBasis) / l.CostBasis
}

// LongTermAt reports whether the lot reaches long-term status (one year
// held) at the given evaluation date.
func (l TaxLot) LongTermAt(at time.Time) bool {
	return !l.PurchaseDate.After(at.AddDate(-1, 0, 0))
}

// Position is one holding: a symbol with a target weight, the current market
// price, and the tax lots that make it up.
type Position struct {
	Symbol       string   `json:"symbol"`
	TargetWeight float64  `json:"target_weight"`
	CurrentPrice float64  `json:"current_price"`
	Lots         []TaxLot `json:"lots"`
}

// NewPosition validates and builds a position.
func NewPosition(symbol string, targetWeight, currentPrice float64, lots []TaxLot) (Position, error) {
	if symbol == "" {
		return Position{}, NewDomainError("position", "symbol must not be empty")
	}
	if currentPrice <= 0 {
		return Position{}, NewDomainError("position", fmt.Sprintf("current price must be positive, got %v", currentPrice))
	}
	if targetWeight < 0 {
		return Position{}, NewDomainError("position", fmt.Sprintf("target weight must be non-negative, got %v", targetWeight))
	}
	return Position{
		Symbol:       symbol,
		TargetWeight: targetWeight,
		CurrentPrice: currentPrice,
		Lots:         lots,
	}, nil
}

// Shares returns the total shares across all lots.
func (p Position) Shares() float64 {
	var total float64
	for _, lot := range p.Lots {
		total += lot.Shares
	}
	return total
}

// MarketValue returns shares times current price.
func (p Position) MarketValue() float64 {
	return p.Shares() * p.CurrentPrice
}

// AverageCost returns the share-weighted mean cost basis, or 0 for an empty
// position.
func (p Position) AverageCost() float64 {
	var shares, cost float64
	for _, lot := range p.Lots {
		shares += lot.Shares
		cost += lot.Shares * lot.CostBasis
	}
	if shares == 0 {
		return 0
	}
	return cost / shares
}

// TotalMarketValue sums market value over a set of positions. Individual
// target weights need not sum to 1; callers normalize by this total.
func TotalMarketValue(positions []Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.MarketValue()
	}
	return total
}
