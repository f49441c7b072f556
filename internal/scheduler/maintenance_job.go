package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/database"
)

// MaintenanceJob runs integrity checks and passive WAL checkpoints across
// the service databases
type MaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new MaintenanceJob
func NewMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for name, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.QuickCheck(ctx); err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Integrity check failed")
			continue
		}

		if err := db.WALCheckpoint("PASSIVE"); err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("WAL checkpoint failed")
		}

		// The position ledger is append-heavy and stays compact;
		// vacuuming it would just hold the write lock
		if db.Profile() == database.ProfileLedger {
			continue
		}

		if err := db.Vacuum(); err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Vacuum failed")
		}
	}

	return nil
}
