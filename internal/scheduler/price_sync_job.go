package scheduler

import (
	"github.com/rs/zerolog"
)

// PriceSyncJob pulls daily bars for the configured symbols into market.db
type PriceSyncJob struct {
	syncer PriceSyncerInterface
	log    zerolog.Logger
}

// NewPriceSyncJob creates a new PriceSyncJob
func NewPriceSyncJob(syncer PriceSyncerInterface, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		syncer: syncer,
		log:    log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run executes the price sync job
func (j *PriceSyncJob) Run() error {
	synced, err := j.syncer.SyncPrices()
	if err != nil {
		return err
	}

	j.log.Info().Int("symbols", synced).Msg("Price sync finished")
	return nil
}
