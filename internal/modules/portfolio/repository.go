// Package portfolio stores positions and their tax lots and assembles the
// snapshots consumed by the rebalancing and risk modules.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/database"
	"github.com/aristath/vega/internal/domain"
)

// PositionRepository handles position and tax lot database operations.
// The long-term flag on lots is not stored; it is derived from the
// purchase date at read time.
type PositionRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

// GetAll returns all positions with their lots, symbols sorted.
func (r *PositionRepository) GetAll() ([]domain.Position, error) {
	rows, err := r.db.Query(`SELECT symbol, target_weight, current_price
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.Symbol, &p.TargetWeight, &p.CurrentPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	lots, err := r.lotsBySymbol()
	if err != nil {
		return nil, err
	}
	for i := range positions {
		positions[i].Lots = lots[positions[i].Symbol]
	}

	return positions, nil
}

// Get returns one position with its lots. The second return value is
// false when the symbol is unknown.
func (r *PositionRepository) Get(symbol string) (domain.Position, bool, error) {
	var p domain.Position
	err := r.db.QueryRow(`SELECT symbol, target_weight, current_price
		FROM positions WHERE symbol = ?`, symbol).
		Scan(&p.Symbol, &p.TargetWeight, &p.CurrentPrice)
	if err == sql.ErrNoRows {
		return domain.Position{}, false, nil
	}
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("failed to query position %s: %w", symbol, err)
	}

	lots, err := r.lotsForSymbol(symbol)
	if err != nil {
		return domain.Position{}, false, err
	}
	p.Lots = lots

	return p, true, nil
}

// Upsert creates or updates a position's target weight and price.
func (r *PositionRepository) Upsert(symbol string, targetWeight, currentPrice float64) error {
	_, err := r.db.Exec(`INSERT INTO positions (symbol, target_weight, current_price, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			target_weight = excluded.target_weight,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at`,
		symbol, targetWeight, currentPrice, r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", symbol, err)
	}
	return nil
}

// UpdatePrice refreshes only the stored price of an existing position.
func (r *PositionRepository) UpdatePrice(symbol string, price float64) error {
	_, err := r.db.Exec(`UPDATE positions SET current_price = ?, updated_at = ?
		WHERE symbol = ?`, price, r.now().UTC().Format(time.RFC3339), symbol)
	if err != nil {
		return fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}
	return nil
}

// AddLot inserts a tax lot for an existing position.
func (r *PositionRepository) AddLot(symbol string, lot domain.TaxLot) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM positions WHERE symbol = ?`, symbol).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check position %s: %w", symbol, err)
		}
		if exists == 0 {
			return domain.NewDomainError("tax_lot", fmt.Sprintf("no position for symbol %s", symbol))
		}

		_, err := tx.Exec(`INSERT INTO tax_lots (id, symbol, shares, cost_basis, purchase_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			lot.ID, symbol, lot.Shares, lot.CostBasis,
			lot.PurchaseDate.Format("2006-01-02"), r.now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to insert lot %s: %w", lot.ID, err)
		}
		return nil
	})
	return err
}

// DeleteLot removes a lot by id. Returns false when no such lot exists.
func (r *PositionRepository) DeleteLot(id string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM tax_lots WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete lot %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}

func (r *PositionRepository) lotsBySymbol() (map[string][]domain.TaxLot, error) {
	rows, err := r.db.Query(`SELECT id, symbol, shares, cost_basis, purchase_date
		FROM tax_lots ORDER BY symbol, purchase_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax lots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.TaxLot)
	for rows.Next() {
		var symbol string
		lot, err := r.scanLot(rows, &symbol)
		if err != nil {
			return nil, err
		}
		out[symbol] = append(out[symbol], lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tax lots: %w", err)
	}
	return out, nil
}

func (r *PositionRepository) lotsForSymbol(symbol string) ([]domain.TaxLot, error) {
	rows, err := r.db.Query(`SELECT id, symbol, shares, cost_basis, purchase_date
		FROM tax_lots WHERE symbol = ? ORDER BY purchase_date, id`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax lots for %s: %w", symbol, err)
	}
	defer rows.Close()

	var lots []domain.TaxLot
	for rows.Next() {
		var s string
		lot, err := r.scanLot(rows, &s)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tax lots: %w", err)
	}
	return lots, nil
}

func (r *PositionRepository) scanLot(rows *sql.Rows, symbol *string) (domain.TaxLot, error) {
	var lot domain.TaxLot
	var dateStr string
	if err := rows.Scan(&lot.ID, symbol, &lot.Shares, &lot.CostBasis, &dateStr); err != nil {
		return domain.TaxLot{}, fmt.Errorf("failed to scan tax lot: %w", err)
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return domain.TaxLot{}, fmt.Errorf("invalid purchase date %q: %w", dateStr, err)
	}
	lot.PurchaseDate = date
	lot.IsLongTerm = lot.LongTermAt(r.now())
	return lot, nil
}
