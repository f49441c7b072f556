package scheduler

import (
	"github.com/rs/zerolog"
)

// SnapshotJob records an end-of-day portfolio snapshot
type SnapshotJob struct {
	snapshotter SnapshotterInterface
	log         zerolog.Logger
}

// NewSnapshotJob creates a new SnapshotJob
func NewSnapshotJob(snapshotter SnapshotterInterface, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		snapshotter: snapshotter,
		log:         log.With().Str("job", "portfolio_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "portfolio_snapshot"
}

// Run executes the snapshot job
func (j *SnapshotJob) Run() error {
	return j.snapshotter.TakeSnapshot()
}
