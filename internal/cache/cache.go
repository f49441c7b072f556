// Package cache provides the msgpack-encoded analysis snapshot cache backed
// by cache.db. Entries are ephemeral: every row carries an expiry and the
// scheduler prunes expired rows hourly.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Store reads and writes cached analysis payloads.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a new cache store
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "cache").Logger(),
	}
}

// Put stores a value under (kind, key) with the given time-to-live. The
// value is msgpack-encoded; an existing entry is replaced.
func (s *Store) Put(kind, key string, value interface{}, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(`INSERT INTO analysis_cache (kind, key, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		kind, key, payload, now.Format(time.RFC3339), now.Add(ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s/%s: %w", kind, key, err)
	}

	return nil
}

// Get loads the value stored under (kind, key) into dest. It returns false
// without error on a miss or an expired entry.
func (s *Store) Get(kind, key string, dest interface{}) (bool, error) {
	var payload []byte
	var expiresAt string

	err := s.db.QueryRow(`SELECT payload, expires_at FROM analysis_cache WHERE kind = ? AND key = ?`,
		kind, key).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s/%s: %w", kind, key, err)
	}

	expiry, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil || time.Now().After(expiry) {
		// Expired (or unparseable) entries behave as misses; Prune removes them.
		return false, nil
	}

	if err := msgpack.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache payload %s/%s: %w", kind, key, err)
	}

	return true, nil
}

// Prune deletes expired entries and returns how many were removed.
func (s *Store) Prune() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM analysis_cache WHERE expires_at < ?`,
		time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.log.Debug().Int64("removed", removed).Msg("Pruned expired cache entries")
	}

	return removed, nil
}
