package matcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/fairmatch/internal/dependencies/clock"
	"github.com/mcoot/fairmatch/internal/metrics"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/rating"
)

// Config holds configuration for the matcher
type Config struct {
	// Interval is the time between scan cycles
	Interval time.Duration

	// Threshold is the maximum rating difference for a pair
	Threshold int

	Widening WideningPolicy
}

// DefaultConfig returns default matcher configuration
func DefaultConfig() Config {
	return Config{
		Interval:  time.Second,
		Threshold: 100,
		Widening: WideningPolicy{
			After: 30 * time.Second,
			Every: 10 * time.Second,
			Step:  50,
			Max:   500,
		},
	}
}

// Queue is the read side of the queue the matcher scans
type Queue interface {
	Snapshot(ctx context.Context) ([]model.QueueEntry, error)
}

// Proposer turns a compatible pair into a proposal
type Proposer interface {
	Propose(ctx context.Context, a, b model.QueueEntry) (*model.Proposal, error)
}

// CycleResult summarizes one scan
type CycleResult struct {
	Scanned    int
	Proposals  []*model.Proposal
	DataErrors []model.PlayerID
}

// Matcher pairs compatible waiting players, oldest first
type Matcher struct {
	queue      Queue
	proposer   Proposer
	comparator rating.Comparator
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config
}

// New creates a new Matcher
func New(
	queue Queue,
	proposer Proposer,
	comparator rating.Comparator,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Matcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Matcher{
		queue:      queue,
		proposer:   proposer,
		comparator: comparator,
		clock:      clock,
		logger:     logger.With(slog.String("component", "matcher")),
		cfg:        cfg,
	}
}

// Config returns the matcher configuration
func (m *Matcher) Config() Config {
	return m.cfg
}

// RunCycle scans one snapshot of the queue. Each unpaired entry, oldest
// first, is paired with the first later unpaired entry it is compatible with.
// A rating the comparator cannot open excludes its owner for the rest of the
// cycle; nothing else about the cycle changes.
func (m *Matcher) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := m.clock.Now()
	defer func() {
		metrics.CycleDuration.Observe(m.clock.Since(start).Seconds())
	}()

	snapshot, err := m.queue.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := &CycleResult{Scanned: len(snapshot)}
	paired := make(map[model.PlayerID]bool)
	bad := make(map[model.PlayerID]bool)

	for i := range snapshot {
		anchor := snapshot[i]
		if paired[anchor.PlayerID] || bad[anchor.PlayerID] {
			continue
		}

		for j := i + 1; j < len(snapshot); j++ {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			candidate := snapshot[j]
			if paired[candidate.PlayerID] || bad[candidate.PlayerID] {
				continue
			}

			ok, err := m.comparator.Compatible(
				rating.Claim{Owner: anchor.PlayerID, Value: anchor.Rating},
				rating.Claim{Owner: candidate.PlayerID, Value: candidate.Rating},
				m.pairThreshold(anchor, candidate, start),
			)
			if err != nil {
				owner := m.recordDataError(err, anchor, candidate)
				bad[owner] = true
				result.DataErrors = append(result.DataErrors, owner)
				if owner == anchor.PlayerID {
					break
				}
				continue
			}
			if !ok {
				continue
			}

			proposal, err := m.proposer.Propose(ctx, anchor, candidate)
			if err != nil {
				// One of the pair left or was paired elsewhere since the
				// snapshot; the next cycle sees the fresh queue
				m.logger.Warn("proposal not created",
					slog.String("player_a", string(anchor.PlayerID)),
					slog.String("player_b", string(candidate.PlayerID)),
					slog.Any("error", err))
				continue
			}

			paired[anchor.PlayerID] = true
			paired[candidate.PlayerID] = true
			result.Proposals = append(result.Proposals, proposal)
			break
		}
	}

	if len(result.Proposals) > 0 || len(result.DataErrors) > 0 {
		m.logger.Info("matcher cycle complete",
			slog.Int("scanned", result.Scanned),
			slog.Int("proposals", len(result.Proposals)),
			slog.Int("data_errors", len(result.DataErrors)))
	}
	return result, nil
}

// pairThreshold is the looser of the two players' widened thresholds
func (m *Matcher) pairThreshold(a, b model.QueueEntry, now time.Time) int {
	ta := m.cfg.Widening.Threshold(m.cfg.Threshold, a.WaitTime(now))
	tb := m.cfg.Widening.Threshold(m.cfg.Threshold, b.WaitTime(now))
	return max(ta, tb)
}

// recordDataError logs and counts a comparator failure and returns the player
// whose rating was bad. The rating itself is never logged.
func (m *Matcher) recordDataError(err error, a, b model.QueueEntry) model.PlayerID {
	owner := a.PlayerID
	var dataErr *rating.DataError
	if errors.As(err, &dataErr) {
		owner = dataErr.Owner
	}

	metrics.ComparatorDataErrors.Inc()
	m.logger.Warn("unreadable rating skipped",
		slog.String("player_id", string(owner)))
	return owner
}
