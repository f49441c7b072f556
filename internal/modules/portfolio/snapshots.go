package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is one end-of-day record of the portfolio's state.
type Snapshot struct {
	ID         string             `json:"id"`
	TakenAt    time.Time          `json:"taken_at"`
	TotalValue float64            `json:"total_value"`
	Positions  []SnapshotPosition `json:"positions"`
}

// SnapshotPosition is one holding inside a snapshot.
type SnapshotPosition struct {
	Symbol        string  `json:"symbol"`
	Shares        float64 `json:"shares"`
	Price         float64 `json:"price"`
	MarketValue   float64 `json:"market_value"`
	Weight        float64 `json:"weight"`
	TargetWeight  float64 `json:"target_weight"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// SnapshotRepository persists portfolio snapshots in cache.db. The
// per-position detail travels as a msgpack payload next to the indexed
// summary columns.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Save persists one snapshot.
func (r *SnapshotRepository) Save(s Snapshot) error {
	payload, err := msgpack.Marshal(s.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot positions: %w", err)
	}

	_, err = r.db.Exec(`INSERT INTO portfolio_snapshots (id, taken_at, total_value, position_count, payload)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.TakenAt.UTC().Format(time.RFC3339), s.TotalValue, len(s.Positions), payload)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", s.ID, err)
	}
	return nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (r *SnapshotRepository) Latest() (*Snapshot, error) {
	var s Snapshot
	var takenAt string
	var payload []byte
	err := r.db.QueryRow(`SELECT id, taken_at, total_value, payload
		FROM portfolio_snapshots ORDER BY taken_at DESC LIMIT 1`).
		Scan(&s.ID, &takenAt, &s.TotalValue, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	s.TakenAt, err = time.Parse(time.RFC3339, takenAt)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot timestamp %q: %w", takenAt, err)
	}
	if err := msgpack.Unmarshal(payload, &s.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot positions: %w", err)
	}

	return &s, nil
}
