package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mcoot/fairmatch/internal/services/matcher"
)

// Config holds the cadence of each background job
type Config struct {
	MatchInterval          time.Duration
	SweepInterval          time.Duration
	SessionCleanupInterval time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		MatchInterval:          time.Second,
		SweepInterval:          time.Second,
		SessionCleanupInterval: 10 * time.Minute,
	}
}

// Matcher runs one scan cycle
type Matcher interface {
	RunCycle(ctx context.Context) (*matcher.CycleResult, error)
}

// Sweeper expires overdue proposals
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SessionCleaner drops expired identity sessions
type SessionCleaner interface {
	CleanExpiredSessions() int
}

// Scheduler drives the periodic matchmaking work: the matcher's scan cycle,
// the proposal expiry sweep and identity session cleanup. Each job runs in
// singleton mode so a slow run is never overlapped by the next one.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopErr  error
}

// New creates a Scheduler with its jobs registered but not yet running
func New(m Matcher, sweeper Sweeper, sessions SessionCleaner, logger *slog.Logger, cfg Config) (*Scheduler, error) {
	defaults := DefaultConfig()
	if cfg.MatchInterval <= 0 {
		cfg.MatchInterval = defaults.MatchInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.SessionCleanupInterval <= 0 {
		cfg.SessionCleanupInterval = defaults.SessionCleanupInterval
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sched:  sched,
		logger: logger.With(slog.String("component", "scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{"matcher-cycle", cfg.MatchInterval, func() {
			if _, err := m.RunCycle(s.ctx); err != nil && s.ctx.Err() == nil {
				s.logger.Error("matcher cycle failed", slog.Any("error", err))
			}
		}},
		{"proposal-expiry", cfg.SweepInterval, func() {
			if _, err := sweeper.SweepExpired(s.ctx); err != nil && s.ctx.Err() == nil {
				s.logger.Error("expiry sweep failed", slog.Any("error", err))
			}
		}},
		{"session-cleanup", cfg.SessionCleanupInterval, func() {
			sessions.CleanExpiredSessions()
		}},
	}

	for _, job := range jobs {
		if err := s.AddJob(job.name, job.interval, job.run); err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, err
		}
	}

	return s, nil
}

// AddJob registers an extra periodic housekeeping job. Like the built-in
// jobs it never overlaps itself.
func (s *Scheduler) AddJob(name string, interval time.Duration, run func()) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(run),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.sched.Start()
}

// Shutdown stops all jobs, waiting for running ones to return. Calling it
// again returns the first result.
func (s *Scheduler) Shutdown() error {
	s.stopOnce.Do(func() {
		s.cancel()
		s.stopErr = s.sched.Shutdown()
		s.logger.Info("scheduler stopped")
	})
	return s.stopErr
}
