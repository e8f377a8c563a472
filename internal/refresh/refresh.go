package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"crowdalpha/internal/logger"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

const DefaultJobTimeout = 30 * time.Minute

// Scheduler re-runs jobs on cron schedules. A run that is still going when its
// next tick fires is skipped rather than stacked.
type Scheduler struct {
	cron       *cron.Cron
	mu         sync.Mutex
	jobs       map[string]cron.EntryID
	location   *time.Location
	jobTimeout time.Duration
	baseCtx    context.Context
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// New creates a scheduler in the given IANA timezone. Jobs receive contexts
// derived from ctx, so cancelling it aborts in-flight runs.
func New(ctx context.Context, timezone string, jobTimeout time.Duration) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	cl := cronLogger{ctx: ctx}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:       c,
		jobs:       make(map[string]cron.EntryID),
		location:   loc,
		jobTimeout: jobTimeout,
		baseCtx:    ctx,
	}, nil
}

// AddJob registers job under name with a standard 5-field cron spec.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	entryID, err := s.cron.AddFunc(spec, func() {
		if err := s.run(name, job); err != nil {
			logger.ErrorWithErr(s.baseCtx, "Scheduled job failed", err, "job", name)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()

	logger.Info(s.baseCtx, "Added scheduled job", "job", name, "schedule", spec, "timezone", s.location.String())
	return nil
}

// RemoveJob unregisters a job; unknown names are ignored.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}
}

// RunNow executes job immediately, outside the schedule.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.jobTimeout)
	defer cancel()

	op := logger.StartOperation(ctx, "refresh.job", "job", name)
	start := time.Now()
	if err := job(op.GetContext()); err != nil {
		op.EndWithError(err)
		return err
	}
	op.End()
	logger.Info(ctx, "Scheduled job completed", "job", name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *Scheduler) Start() {
	logger.Info(s.baseCtx, "Starting refresh scheduler", "jobs", len(s.ListJobs()))
	s.cron.Start()
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	logger.Info(s.baseCtx, "Stopping refresh scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{Name: name, NextRun: entry.Next, LastRun: entry.Prev})
				break
			}
		}
	}
	return infos
}

// ValidateSpec reports whether spec parses as a standard cron expression.
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// cronLogger routes cron's own messages through the structured logger.
type cronLogger struct {
	ctx context.Context
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug(l.ctx, "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.ErrorWithErr(l.ctx, "cron: "+msg, err, keysAndValues...)
}
