// Package scheduler manages the background jobs: nightly price sync, hourly
// cache pruning and end-of-day portfolio snapshots. Every run is recorded in
// the job_history table and announced on the event bus.
package scheduler

import (
	"database/sql"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	history *sql.DB
	bus     *events.Bus
	log     zerolog.Logger
}

// New creates a new scheduler. The history database may be nil, in which
// case runs are only logged.
func New(history *sql.DB, bus *events.Bus, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		history: history,
		bus:     bus,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 30 22 * * MON-FRI" - 22:30 UTC weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})

	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	s.runJob(job)
	return nil
}

func (s *Scheduler) runJob(job Job) {
	started := time.Now()
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	s.emit(events.JobStarted, job.Name(), "started", "", 0)

	err := job.Run()
	duration := time.Since(started)

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", duration).
			Msg("Job failed")
		s.record(job.Name(), started, duration, err)
		s.emit(events.JobFailed, job.Name(), "failed", err.Error(), duration)
		return
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration", duration).
		Msg("Job completed")
	s.record(job.Name(), started, duration, nil)
	s.emit(events.JobCompleted, job.Name(), "completed", "", duration)
}

// record appends a row to job_history. Failures to record are logged and
// swallowed so a broken history table never takes down a job.
func (s *Scheduler) record(name string, started time.Time, duration time.Duration, jobErr error) {
	if s.history == nil {
		return
	}

	status := "completed"
	detail := ""
	if jobErr != nil {
		status = "failed"
		detail = jobErr.Error()
	}

	_, err := s.history.Exec(`INSERT INTO job_history (job, started_at, finished_at, status, detail)
		VALUES (?, ?, ?, ?, ?)`,
		name, started.Format(time.RFC3339), started.Add(duration).Format(time.RFC3339), status, detail)
	if err != nil {
		s.log.Warn().Err(err).Str("job", name).Msg("Failed to record job run")
	}
}

func (s *Scheduler) emit(eventType events.EventType, name, status, errMsg string, duration time.Duration) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(eventType, "scheduler", events.JobStatusData{
		Job:    name,
		Status: status,
		Error:  errMsg,
		Took:   duration.Seconds(),
	})
}
