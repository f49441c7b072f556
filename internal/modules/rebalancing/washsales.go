package rebalancing

import (
	"time"

	"github.com/aristath/vega/internal/domain"
)

// washSaleWindowDays is the repurchase window that disallows a loss
// deduction.
const washSaleWindowDays = 30

// RecentPurchase is one lot inside an open wash-sale window.
type RecentPurchase struct {
	LotID        string    `json:"lot_id,omitempty"`
	Shares       float64   `json:"shares"`
	PurchaseDate time.Time `json:"purchase_date"`
	WindowEnds   time.Time `json:"window_ends"`
}

// WashSaleRisk flags a position whose recent purchases would disallow a
// harvested loss if it were sold now.
type WashSaleRisk struct {
	Symbol    string           `json:"symbol"`
	Purchases []RecentPurchase `json:"recent_purchases"`
}

// CheckWashSales flags positions with lots purchased within the last 30
// days as of the given date. Advisory only: no trade is blocked.
func (r *Rebalancer) CheckWashSales(positions []domain.Position, asOf time.Time) []WashSaleRisk {
	risks := []WashSaleRisk{}
	for _, p := range positions {
		var recent []RecentPurchase
		for _, lot := range p.Lots {
			windowEnds := lot.PurchaseDate.AddDate(0, 0, washSaleWindowDays)
			if windowEnds.After(asOf) {
				recent = append(recent, RecentPurchase{
					LotID:        lot.ID,
					Shares:       lot.Shares,
					PurchaseDate: lot.PurchaseDate,
					WindowEnds:   windowEnds,
				})
			}
		}
		if len(recent) > 0 {
			risks = append(risks, WashSaleRisk{Symbol: p.Symbol, Purchases: recent})
		}
	}
	return risks
}
