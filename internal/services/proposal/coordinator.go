package proposal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/fairmatch/internal/dependencies/clock"
	"github.com/mcoot/fairmatch/internal/dependencies/ids"
	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/metrics"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/queue"
	"github.com/mcoot/fairmatch/internal/services/registry"
	"github.com/mcoot/fairmatch/internal/storage"
)

// Config holds configuration for the proposal coordinator
type Config struct {
	// AcceptWindow is how long both players have to accept
	AcceptWindow time.Duration

	// SweepInterval is how often open proposals are checked for expiry
	SweepInterval time.Duration

	// PreserveWaitTime re-queues returning players at their original enqueue
	// time instead of the current time
	PreserveWaitTime bool
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		AcceptWindow:  15 * time.Second,
		SweepInterval: time.Second,
	}
}

// Coordinator owns proposals: it creates them, records acceptances and drives
// each one to exactly one terminal state.
type Coordinator struct {
	storage   storage.Storage
	registry  *registry.Registry
	queue     *queue.Service
	clock     clock.Clock
	ids       ids.Generator
	publisher events.Publisher
	logger    *slog.Logger
	cfg       Config
}

// New creates a new Coordinator
func New(
	storage storage.Storage,
	registry *registry.Registry,
	queue *queue.Service,
	clock clock.Clock,
	ids ids.Generator,
	publisher events.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Coordinator {
	if cfg.AcceptWindow <= 0 {
		cfg.AcceptWindow = DefaultConfig().AcceptWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Coordinator{
		storage:   storage,
		registry:  registry,
		queue:     queue,
		clock:     clock,
		ids:       ids,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "proposal")),
		cfg:       cfg,
	}
}

// Config returns the coordinator configuration
func (c *Coordinator) Config() Config {
	return c.cfg
}

// Propose pairs two queued players. Both leave the queue and become proposed.
func (c *Coordinator) Propose(ctx context.Context, a, b model.QueueEntry) (*model.Proposal, error) {
	if a.PlayerID == b.PlayerID {
		return nil, model.ErrSamePlayer
	}

	var emitted []model.Event
	defer func() { c.publish(ctx, emitted) }()

	unlock := c.registry.Lock(a.PlayerID, b.PlayerID)
	defer unlock()

	// The entries come from a snapshot; make sure both are still waiting
	for _, id := range []model.PlayerID{a.PlayerID, b.PlayerID} {
		state, err := c.registry.State(ctx, id)
		if err != nil {
			return nil, err
		}
		if state != model.StateQueued {
			return nil, fmt.Errorf("%w: %s is %s", model.ErrNotQueued, id, state)
		}
	}

	now := c.clock.Now()
	proposal := &model.Proposal{
		ID:        c.ids.ProposalID(),
		Players:   [2]model.PlayerID{a.PlayerID, b.PlayerID},
		Status:    model.ProposalOpen,
		QueuedAt:  [2]time.Time{a.EnqueuedAt, b.EnqueuedAt},
		CreatedAt: now,
		Deadline:  now.Add(c.cfg.AcceptWindow),
	}

	markProposed := func(sess *model.Session) {
		sess.ProposalID = proposal.ID
	}
	if _, err := c.queue.RemoveLocked(ctx, a.PlayerID, model.StateProposed, markProposed); err != nil {
		return nil, err
	}
	if _, err := c.queue.RemoveLocked(ctx, b.PlayerID, model.StateProposed, markProposed); err != nil {
		c.restoreLocked(ctx, a)
		return nil, err
	}

	if err := c.storage.SaveProposal(ctx, proposal); err != nil {
		c.restoreLocked(ctx, a)
		c.restoreLocked(ctx, b)
		return nil, err
	}

	metrics.ProposalsTotal.WithLabelValues(metrics.OutcomeCreated).Inc()
	metrics.QueueWait.Observe(a.WaitTime(now).Seconds())
	metrics.QueueWait.Observe(b.WaitTime(now).Seconds())

	c.logger.Info("proposal created",
		slog.String("proposal_id", string(proposal.ID)),
		slog.String("player_a", string(a.PlayerID)),
		slog.String("player_b", string(b.PlayerID)),
		slog.Time("deadline", proposal.Deadline))

	emitted = append(emitted, model.Event{
		Type:       model.EventProposalCreated,
		Timestamp:  now,
		PlayerIDs:  proposal.Players[:],
		ProposalID: proposal.ID,
		Payload:    model.ProposalPayload{Proposal: *proposal},
	})
	return proposal, nil
}

// Get returns a proposal by id
func (c *Coordinator) Get(ctx context.Context, id model.ProposalID) (*model.Proposal, error) {
	return c.storage.GetProposal(ctx, id)
}

// Accept records a player's acceptance. When the second acceptance arrives
// before the deadline the proposal commits and a Match is created.
// Accepting twice is a no-op.
func (c *Coordinator) Accept(ctx context.Context, id model.ProposalID, playerID model.PlayerID) (*model.Proposal, error) {
	var emitted []model.Event
	defer func() { c.publish(ctx, emitted) }()

	proposal, unlock, err := c.lockOpen(ctx, id, playerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := c.clock.Now()
	if proposal.DeadlinePassed(now) {
		if err := c.expireLocked(ctx, proposal, now, &emitted); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: proposal %s expired", model.ErrUnknownProposal, id)
	}

	idx := proposal.Index(playerID)
	if proposal.Accepted[idx] {
		return proposal, nil
	}
	proposal.Accepted[idx] = true

	if proposal.AllAccepted() {
		if err := c.commitLocked(ctx, proposal, now, &emitted); err != nil {
			return nil, err
		}
		return proposal, nil
	}

	if err := c.storage.SaveProposal(ctx, proposal); err != nil {
		return nil, err
	}

	c.logger.Info("proposal accepted",
		slog.String("proposal_id", string(id)),
		slog.String("player_id", string(playerID)))

	emitted = append(emitted, model.Event{
		Type:       model.EventProposalAccepted,
		Timestamp:  now,
		PlayerIDs:  proposal.Players[:],
		ProposalID: proposal.ID,
		Payload:    model.ProposalPayload{Proposal: *proposal},
	})
	return proposal, nil
}

// Decline cancels the proposal. The decliner returns to registered and the
// other player goes back into the queue.
func (c *Coordinator) Decline(ctx context.Context, id model.ProposalID, playerID model.PlayerID) (*model.Proposal, error) {
	var emitted []model.Event
	defer func() { c.publish(ctx, emitted) }()

	proposal, unlock, err := c.lockOpen(ctx, id, playerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := c.clock.Now()
	if proposal.DeadlinePassed(now) {
		if err := c.expireLocked(ctx, proposal, now, &emitted); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: proposal %s expired", model.ErrUnknownProposal, id)
	}

	proposal.Status = model.ProposalCancelled
	proposal.DeclinedBy = playerID
	proposal.ResolvedAt = now
	if err := c.storage.SaveProposal(ctx, proposal); err != nil {
		return nil, err
	}

	var errs []error
	if _, err := c.registry.Transition(ctx, playerID, model.StateRegistered, nil); err != nil {
		errs = append(errs, err)
	}
	other := proposal.Other(playerID)
	if err := c.requeueLocked(ctx, proposal, other, now); err != nil {
		errs = append(errs, err)
	}

	metrics.ProposalsTotal.WithLabelValues(metrics.OutcomeCancelled).Inc()
	c.logger.Info("proposal declined",
		slog.String("proposal_id", string(id)),
		slog.String("declined_by", string(playerID)))

	emitted = append(emitted, model.Event{
		Type:       model.EventProposalCancelled,
		Timestamp:  now,
		PlayerIDs:  proposal.Players[:],
		ProposalID: proposal.ID,
		Payload: model.RequeuedPayload{
			Proposal:   *proposal,
			Requeued:   []model.PlayerID{other},
			Registered: []model.PlayerID{playerID},
		},
	})
	return proposal, errors.Join(errs...)
}

// SweepExpired expires every open proposal whose deadline has passed and
// returns how many it expired
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
	open, err := c.storage.ListOpenProposals(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range open {
		if !p.DeadlinePassed(c.clock.Now()) {
			continue
		}
		ok, err := c.expireIfDue(ctx, p.ID, p.Players)
		if err != nil {
			c.logger.Error("failed to expire proposal",
				slog.String("proposal_id", string(p.ID)),
				slog.Any("error", err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (c *Coordinator) expireIfDue(ctx context.Context, id model.ProposalID, players [2]model.PlayerID) (bool, error) {
	var emitted []model.Event
	defer func() { c.publish(ctx, emitted) }()

	unlock := c.registry.Lock(players[0], players[1])
	defer unlock()

	// Re-read under the lock; an accept or decline may have won the race
	proposal, err := c.storage.GetProposal(ctx, id)
	if err != nil {
		return false, err
	}
	now := c.clock.Now()
	if proposal.Status != model.ProposalOpen || !proposal.DeadlinePassed(now) {
		return false, nil
	}
	return true, c.expireLocked(ctx, proposal, now, &emitted)
}

// lockOpen locks the proposal's players and returns the proposal if it is
// still open and playerID takes part in it
func (c *Coordinator) lockOpen(ctx context.Context, id model.ProposalID, playerID model.PlayerID) (*model.Proposal, func(), error) {
	proposal, err := c.storage.GetProposal(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !proposal.IsParticipant(playerID) {
		return nil, nil, model.ErrNotAParticipant
	}

	unlock := c.registry.Lock(proposal.Players[0], proposal.Players[1])

	proposal, err = c.storage.GetProposal(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if proposal.Status != model.ProposalOpen {
		unlock()
		return nil, nil, fmt.Errorf("%w: proposal %s is %s", model.ErrUnknownProposal, id, proposal.Status)
	}
	return proposal, unlock, nil
}

func (c *Coordinator) commitLocked(ctx context.Context, proposal *model.Proposal, now time.Time, emitted *[]model.Event) error {
	match := &model.Match{
		ID:          c.ids.MatchID(),
		ProposalID:  proposal.ID,
		Players:     proposal.Players,
		CommittedAt: now,
	}

	committed := proposal.Clone()
	committed.Status = model.ProposalCommitted
	committed.MatchID = match.ID
	committed.ResolvedAt = now
	if err := c.storage.CommitMatch(ctx, committed, match); err != nil {
		return err
	}
	*proposal = *committed

	var errs []error
	for _, id := range proposal.Players {
		_, err := c.registry.Transition(ctx, id, model.StateInMatch, func(sess *model.Session) {
			sess.MatchID = match.ID
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	metrics.ProposalsTotal.WithLabelValues(metrics.OutcomeCommitted).Inc()
	metrics.MatchesTotal.Inc()
	c.logger.Info("match committed",
		slog.String("proposal_id", string(proposal.ID)),
		slog.String("match_id", string(match.ID)))

	*emitted = append(*emitted, model.MatchCommittedEvent(*match))
	return errors.Join(errs...)
}

// expireLocked marks the proposal expired. Players who never accepted go back
// into the queue; players who had accepted return to registered.
func (c *Coordinator) expireLocked(ctx context.Context, proposal *model.Proposal, now time.Time, emitted *[]model.Event) error {
	proposal.Status = model.ProposalExpired
	proposal.ResolvedAt = now
	if err := c.storage.SaveProposal(ctx, proposal); err != nil {
		return err
	}

	var errs []error
	var requeued, registered []model.PlayerID
	for i, id := range proposal.Players {
		if proposal.Accepted[i] {
			if _, err := c.registry.Transition(ctx, id, model.StateRegistered, nil); err != nil {
				errs = append(errs, err)
			}
			registered = append(registered, id)
			continue
		}
		if err := c.requeueLocked(ctx, proposal, id, now); err != nil {
			errs = append(errs, err)
		}
		requeued = append(requeued, id)
	}

	metrics.ProposalsTotal.WithLabelValues(metrics.OutcomeExpired).Inc()
	c.logger.Info("proposal expired",
		slog.String("proposal_id", string(proposal.ID)),
		slog.Int("requeued", len(requeued)))

	*emitted = append(*emitted, model.Event{
		Type:       model.EventProposalExpired,
		Timestamp:  now,
		PlayerIDs:  proposal.Players[:],
		ProposalID: proposal.ID,
		Payload: model.RequeuedPayload{
			Proposal:   *proposal,
			Requeued:   requeued,
			Registered: registered,
		},
	})
	return errors.Join(errs...)
}

// requeueLocked puts a proposed player back into the queue with the rating
// they were admitted with
func (c *Coordinator) requeueLocked(ctx context.Context, proposal *model.Proposal, playerID model.PlayerID, now time.Time) error {
	session, err := c.registry.Get(ctx, playerID)
	if err != nil {
		return err
	}

	enqueuedAt := now
	if c.cfg.PreserveWaitTime {
		enqueuedAt = proposal.QueuedAt[proposal.Index(playerID)]
	}

	_, err = c.queue.AdmitLocked(ctx, playerID, session.Rating, enqueuedAt)
	return err
}

// publish hands events to the publisher. Callers defer it ahead of their
// unlock so that slow sinks never run under the player locks.
func (c *Coordinator) publish(ctx context.Context, emitted []model.Event) {
	for _, event := range emitted {
		c.publisher.Publish(ctx, event)
	}
}

// restoreLocked undoes a partial Propose for one player
func (c *Coordinator) restoreLocked(ctx context.Context, entry model.QueueEntry) {
	if _, err := c.queue.AdmitLocked(ctx, entry.PlayerID, entry.Rating, entry.EnqueuedAt); err != nil {
		c.logger.Error("failed to restore queue entry",
			slog.String("player_id", string(entry.PlayerID)),
			slog.Any("error", err))
	}
}
