package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/database"
	"github.com/aristath/vega/internal/domain"
)

// PriceRepository handles price history database operations
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// UpsertBars stores daily bars for a symbol, replacing existing rows for the
// same day. Returns the number of bars written.
func (r *PriceRepository) UpsertBars(symbol string, bars []domain.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	written := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO price_history
			(symbol, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, bar := range bars {
			if bar.Close <= 0 {
				continue
			}
			_, err := stmt.Exec(symbol, bar.Date.Format("2006-01-02"),
				bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
			if err != nil {
				return fmt.Errorf("failed to upsert bar %s/%s: %w",
					symbol, bar.Date.Format("2006-01-02"), err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

// GetHistory returns up to lookback daily bars for a symbol in ascending
// date order. lookback <= 0 returns the full history.
func (r *PriceRepository) GetHistory(symbol string, lookback int) ([]domain.PriceBar, error) {
	query := `SELECT date, open, high, low, close, volume FROM price_history
		WHERE symbol = ? ORDER BY date ASC`
	args := []interface{}{symbol}

	if lookback > 0 {
		query = `SELECT date, open, high, low, close, volume FROM (
			SELECT date, open, high, low, close, volume FROM price_history
			WHERE symbol = ? ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC`
		args = append(args, lookback)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var bar domain.PriceBar
		var dateStr string
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bar date %q: %w", dateStr, err)
		}
		bar.Date = date
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}

	return bars, nil
}

// BarCount returns how many daily bars are stored for a symbol
func (r *PriceRepository) BarCount(symbol string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM price_history WHERE symbol = ?`, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return count, nil
}

// ListSymbols returns all symbols with stored history
func (r *PriceRepository) ListSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM price_history ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// SetLatestPrice stores the most recent price for a symbol
func (r *PriceRepository) SetLatestPrice(symbol string, price float64, asOf time.Time) error {
	_, err := r.db.Exec(`INSERT INTO latest_prices (symbol, price, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			price = excluded.price,
			updated_at = excluded.updated_at`,
		symbol, price, asOf.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set latest price for %s: %w", symbol, err)
	}
	return nil
}

// GetLatestPrice returns the most recent stored price for a symbol, or nil
// when none is known.
func (r *PriceRepository) GetLatestPrice(symbol string) (*float64, error) {
	var price float64
	err := r.db.QueryRow(`SELECT price FROM latest_prices WHERE symbol = ?`, symbol).Scan(&price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price for %s: %w", symbol, err)
	}
	return &price, nil
}

// GetAllLatestPrices returns the latest price for every known symbol
func (r *PriceRepository) GetAllLatestPrices() (map[string]float64, error) {
	rows, err := r.db.Query(`SELECT symbol, price FROM latest_prices`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string]float64)
	for rows.Next() {
		var symbol string
		var price float64
		if err := rows.Scan(&symbol, &price); err != nil {
			return nil, fmt.Errorf("failed to scan latest price: %w", err)
		}
		prices[symbol] = price
	}

	return prices, rows.Err()
}
