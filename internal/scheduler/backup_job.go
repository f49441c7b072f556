package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/reliability"
)

// BackupRunnerInterface defines the contract for backup operations
// Used by the backup job to enable testing with mocks
type BackupRunnerInterface interface {
	CreateBackup(ctx context.Context) (reliability.BackupInfo, error)
	PruneBackups(ctx context.Context, keep int) (int, error)
}

// BackupJob archives the service databases to object storage and prunes
// old archives past the retention count
type BackupJob struct {
	backups BackupRunnerInterface
	keep    int
	log     zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backups BackupRunnerInterface, keep int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		keep:    keep,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	info, err := j.backups.CreateBackup(ctx)
	if err != nil {
		return err
	}

	j.log.Info().Str("archive", info.Filename).Msg("Scheduled backup finished")

	// The archive is already uploaded; a failed prune only leaves extras behind
	if _, err := j.backups.PruneBackups(ctx, j.keep); err != nil {
		j.log.Warn().Err(err).Msg("Backup pruning failed")
	}

	return nil
}
