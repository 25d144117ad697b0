package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/fairmatch/internal/dependencies/clock"
	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/proposal"
	"github.com/mcoot/fairmatch/internal/services/queue"
	"github.com/mcoot/fairmatch/internal/services/registry"
	"github.com/mcoot/fairmatch/internal/storage"
)

// maxLeaveAttempts bounds retries when a proposal resolves underneath Leave
const maxLeaveAttempts = 3

// Status is a player's view of their own matchmaking state
type Status struct {
	PlayerID   model.PlayerID
	State      model.SessionState
	ProposalID model.ProposalID
	MatchID    model.MatchID
	Entry      *model.QueueEntry // Set while queued
	Proposal   *model.Proposal   // Set while proposed
}

// Service is the player-facing matchmaking API. It routes each request to the
// component that owns the affected state.
type Service struct {
	storage     storage.Storage
	registry    *registry.Registry
	queue       *queue.Service
	coordinator *proposal.Coordinator
	clock       clock.Clock
	publisher   events.Publisher
	logger      *slog.Logger
}

// New creates a new matchmaking Service
func New(
	storage storage.Storage,
	registry *registry.Registry,
	queue *queue.Service,
	coordinator *proposal.Coordinator,
	clock clock.Clock,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:     storage,
		registry:    registry,
		queue:       queue,
		coordinator: coordinator,
		clock:       clock,
		publisher:   publisher,
		logger:      logger.With(slog.String("component", "matchmaking")),
	}
}

// Register makes a player known to matchmaking
func (s *Service) Register(ctx context.Context, playerID model.PlayerID) (*model.Session, error) {
	return s.registry.Register(ctx, playerID)
}

// Enqueue puts a registered player into the queue
func (s *Service) Enqueue(ctx context.Context, playerID model.PlayerID, rating model.EncryptedRating) (*model.QueueEntry, error) {
	return s.queue.Enqueue(ctx, playerID, rating)
}

// Leave withdraws a player from matchmaking: a queued player is dequeued and a
// proposed player declines. Players in a match cannot leave.
func (s *Service) Leave(ctx context.Context, playerID model.PlayerID) error {
	for attempt := 0; attempt < maxLeaveAttempts; attempt++ {
		session, err := s.registry.Get(ctx, playerID)
		if err != nil {
			return err
		}

		switch session.State {
		case model.StateRegistered:
			return nil
		case model.StateQueued:
			_, err := s.queue.Dequeue(ctx, playerID)
			return err
		case model.StateProposed:
			_, err := s.coordinator.Decline(ctx, session.ProposalID, playerID)
			if errors.Is(err, model.ErrUnknownProposal) {
				// Resolved meanwhile; re-read the state and try again
				continue
			}
			return err
		case model.StateInMatch:
			return fmt.Errorf("%w: %s", model.ErrInMatch, session.MatchID)
		default:
			return fmt.Errorf("%w: %s", model.ErrInvalidTransition, session.State)
		}
	}
	return fmt.Errorf("leave did not settle after %d attempts", maxLeaveAttempts)
}

// Accept accepts a proposal on behalf of playerID
func (s *Service) Accept(ctx context.Context, proposalID model.ProposalID, playerID model.PlayerID) (*model.Proposal, error) {
	return s.coordinator.Accept(ctx, proposalID, playerID)
}

// Decline declines a proposal on behalf of playerID
func (s *Service) Decline(ctx context.Context, proposalID model.ProposalID, playerID model.PlayerID) (*model.Proposal, error) {
	return s.coordinator.Decline(ctx, proposalID, playerID)
}

// Status returns the player's state along with the queue entry or proposal
// that goes with it
func (s *Service) Status(ctx context.Context, playerID model.PlayerID) (*Status, error) {
	session, err := s.registry.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		PlayerID:   session.PlayerID,
		State:      session.State,
		ProposalID: session.ProposalID,
		MatchID:    session.MatchID,
	}

	switch session.State {
	case model.StateQueued:
		entries, err := s.queue.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if entries[i].PlayerID == playerID {
				status.Entry = &entries[i]
				break
			}
		}
	case model.StateProposed:
		p, err := s.coordinator.Get(ctx, session.ProposalID)
		if err != nil && !errors.Is(err, model.ErrUnknownProposal) {
			return nil, err
		}
		status.Proposal = p
	}
	return status, nil
}

// QueueSize returns the number of waiting players
func (s *Service) QueueSize(ctx context.Context) (int, error) {
	return s.queue.Size(ctx)
}

// GetProposal returns a proposal if playerID takes part in it
func (s *Service) GetProposal(ctx context.Context, proposalID model.ProposalID, playerID model.PlayerID) (*model.Proposal, error) {
	p, err := s.coordinator.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsParticipant(playerID) {
		return nil, model.ErrNotAParticipant
	}
	return p, nil
}

// GetMatch returns a committed match
func (s *Service) GetMatch(ctx context.Context, matchID model.MatchID) (*model.Match, error) {
	return s.storage.GetMatch(ctx, matchID)
}

// MatchesSince returns committed matches from since onwards, oldest first.
// Consumers that lost their stream use it to catch up.
func (s *Service) MatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.Match, error) {
	return s.storage.ListMatchesSince(ctx, since, limit)
}

// CompleteMatch releases both players of a finished match back to
// registered. The match record itself is unchanged. Completing an already
// released match is a no-op.
func (s *Service) CompleteMatch(ctx context.Context, matchID model.MatchID, playerID model.PlayerID) (*model.Match, error) {
	match, err := s.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(playerID) {
		return nil, model.ErrNotAParticipant
	}

	released, err := s.release(ctx, match)
	if err != nil {
		return nil, err
	}

	if len(released) > 0 {
		s.logger.Info("match released",
			slog.String("match_id", string(matchID)),
			slog.String("released_by", string(playerID)))
		s.publisher.Publish(ctx, model.Event{
			Type:      model.EventMatchReleased,
			Timestamp: s.clock.Now(),
			PlayerIDs: released,
			MatchID:   matchID,
			Payload:   model.MatchPayload{Match: *match},
		})
	}
	return match, nil
}

// release moves every participant still in the match back to registered and
// returns who was moved
func (s *Service) release(ctx context.Context, match *model.Match) ([]model.PlayerID, error) {
	unlock := s.registry.Lock(match.Players[0], match.Players[1])
	defer unlock()

	var released []model.PlayerID
	for _, id := range match.Players {
		session, err := s.registry.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if session.State != model.StateInMatch || session.MatchID != match.ID {
			continue
		}
		if _, err := s.registry.Transition(ctx, id, model.StateRegistered, nil); err != nil {
			return nil, err
		}
		released = append(released, id)
	}
	return released, nil
}
