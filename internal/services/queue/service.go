package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/fairmatch/internal/dependencies/clock"
	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/metrics"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/registry"
	"github.com/mcoot/fairmatch/internal/storage"
)

// Config holds configuration for the queue
type Config struct {
	// Capacity is the maximum number of waiting players. Zero means unbounded.
	// Players returning from a failed proposal are admitted regardless.
	Capacity int
}

// DefaultConfig returns default queue configuration
func DefaultConfig() Config {
	return Config{
		Capacity: 100,
	}
}

// Service owns queue membership
type Service struct {
	storage   storage.Storage
	registry  *registry.Registry
	clock     clock.Clock
	publisher events.Publisher
	logger    *slog.Logger
	cfg       Config
}

// New creates a new queue Service
func New(
	storage storage.Storage,
	registry *registry.Registry,
	clock clock.Clock,
	publisher events.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	return &Service{
		storage:   storage,
		registry:  registry,
		clock:     clock,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "queue")),
		cfg:       cfg,
	}
}

// Enqueue admits a registered player with their current encrypted rating
func (s *Service) Enqueue(ctx context.Context, playerID model.PlayerID, rating model.EncryptedRating) (*model.QueueEntry, error) {
	if len(rating) == 0 {
		return nil, fmt.Errorf("%w: empty rating", model.ErrDataError)
	}

	entry, err := s.enqueue(ctx, playerID, rating)
	if err != nil {
		return nil, err
	}

	s.logger.Info("player queued", slog.String("player_id", string(playerID)))
	s.publisher.Publish(ctx, model.Event{
		Type:      model.EventPlayerQueued,
		Timestamp: entry.EnqueuedAt,
		PlayerIDs: []model.PlayerID{playerID},
	})
	return entry, nil
}

func (s *Service) enqueue(ctx context.Context, playerID model.PlayerID, rating model.EncryptedRating) (*model.QueueEntry, error) {
	unlock := s.registry.Lock(playerID)
	defer unlock()

	session, err := s.registry.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case model.StateRegistered:
	case model.StateQueued, model.StateProposed, model.StateInMatch:
		return nil, fmt.Errorf("%w: player is %s", model.ErrAlreadyQueued, session.State)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidTransition, session.State)
	}

	return s.admitLocked(ctx, playerID, rating, s.clock.Now(), s.cfg.Capacity)
}

// Dequeue removes a waiting player. It is a no-op for a registered player who
// is not in the queue.
func (s *Service) Dequeue(ctx context.Context, playerID model.PlayerID) (bool, error) {
	removed, err := s.dequeue(ctx, playerID)
	if err != nil || !removed {
		return removed, err
	}

	s.logger.Info("player left queue", slog.String("player_id", string(playerID)))
	s.publisher.Publish(ctx, model.Event{
		Type:      model.EventPlayerLeft,
		Timestamp: s.clock.Now(),
		PlayerIDs: []model.PlayerID{playerID},
	})
	return true, nil
}

func (s *Service) dequeue(ctx context.Context, playerID model.PlayerID) (bool, error) {
	unlock := s.registry.Lock(playerID)
	defer unlock()

	session, err := s.registry.Get(ctx, playerID)
	if err != nil {
		return false, err
	}
	if session.State != model.StateQueued {
		return false, nil
	}
	return s.RemoveLocked(ctx, playerID, model.StateRegistered, nil)
}

// Snapshot returns a point-in-time copy of the queue, oldest first
func (s *Service) Snapshot(ctx context.Context) ([]model.QueueEntry, error) {
	return s.storage.GetQueueEntries(ctx)
}

// Size returns the number of waiting players
func (s *Service) Size(ctx context.Context) (int, error) {
	return s.storage.QueueLength(ctx)
}

// AdmitLocked appends an entry and moves the player to queued, ignoring the
// capacity limit. The caller must hold the player's lock.
func (s *Service) AdmitLocked(ctx context.Context, playerID model.PlayerID, rating model.EncryptedRating, enqueuedAt time.Time) (*model.QueueEntry, error) {
	return s.admitLocked(ctx, playerID, rating, enqueuedAt, 0)
}

func (s *Service) admitLocked(ctx context.Context, playerID model.PlayerID, rating model.EncryptedRating, enqueuedAt time.Time, capacity int) (*model.QueueEntry, error) {
	entry := &model.QueueEntry{
		PlayerID:   playerID,
		Rating:     rating,
		EnqueuedAt: enqueuedAt,
	}
	if err := s.storage.PushQueueEntry(ctx, entry, capacity); err != nil {
		return nil, err
	}

	_, err := s.registry.Transition(ctx, playerID, model.StateQueued, func(sess *model.Session) {
		sess.Rating = rating
	})
	if err != nil {
		// Roll back so membership keeps matching the session state
		if _, rbErr := s.storage.RemoveQueueEntry(ctx, playerID); rbErr != nil {
			s.logger.Error("failed to roll back queue entry",
				slog.String("player_id", string(playerID)),
				slog.Any("error", rbErr))
		}
		return nil, err
	}

	s.refreshGauge(ctx)
	return entry, nil
}

// RemoveLocked takes a queued player out of the queue and moves them to next.
// The caller must hold the player's lock. Returns false if the player was not
// in the queue.
func (s *Service) RemoveLocked(ctx context.Context, playerID model.PlayerID, next model.SessionState, mutate func(*model.Session)) (bool, error) {
	removed, err := s.storage.RemoveQueueEntry(ctx, playerID)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	if _, err := s.registry.Transition(ctx, playerID, next, mutate); err != nil {
		return false, err
	}

	s.refreshGauge(ctx)
	return true, nil
}

func (s *Service) refreshGauge(ctx context.Context) {
	if n, err := s.storage.QueueLength(ctx); err == nil {
		metrics.QueueSize.Set(float64(n))
	}
}
