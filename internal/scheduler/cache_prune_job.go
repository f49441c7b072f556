package scheduler

import (
	"github.com/rs/zerolog"
)

// CachePruneJob removes expired analysis snapshots from cache.db
type CachePruneJob struct {
	pruner CachePrunerInterface
	log    zerolog.Logger
}

// NewCachePruneJob creates a new CachePruneJob
func NewCachePruneJob(pruner CachePrunerInterface, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{
		pruner: pruner,
		log:    log.With().Str("job", "cache_prune").Logger(),
	}
}

// Name returns the job name
func (j *CachePruneJob) Name() string {
	return "cache_prune"
}

// Run executes the cache prune job
func (j *CachePruneJob) Run() error {
	removed, err := j.pruner.Prune()
	if err != nil {
		return err
	}

	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Cache pruned")
	}
	return nil
}
