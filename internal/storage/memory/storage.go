package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Values are copied on the way in and out so callers never share state.
type Storage struct {
	mu sync.RWMutex

	sessions  map[model.PlayerID]*model.Session
	queue     map[model.PlayerID]model.QueueEntry
	queueSeq  int64
	proposals map[model.ProposalID]*model.Proposal
	matches   map[model.MatchID]*model.Match

	// Undelivered match id -> sinks that have acknowledged it
	outbox map[model.MatchID]map[string]bool
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions:  make(map[model.PlayerID]*model.Session),
		queue:     make(map[model.PlayerID]model.QueueEntry),
		proposals: make(map[model.ProposalID]*model.Proposal),
		matches:   make(map[model.MatchID]*model.Match),
		outbox:    make(map[model.MatchID]map[string]bool),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.PlayerID]; ok {
		return fmt.Errorf("%w: %s", model.ErrAlreadyRegistered, session.PlayerID)
	}
	s.sessions[session.PlayerID] = session.Clone()
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.PlayerID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrNotRegistered
	}
	return session.Clone(), nil
}

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.PlayerID]; !ok {
		return model.ErrNotRegistered
	}
	s.sessions[session.PlayerID] = session.Clone()
	return nil
}

// Queue operations

func (s *Storage) PushQueueEntry(ctx context.Context, entry *model.QueueEntry, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[entry.PlayerID]; ok {
		return fmt.Errorf("%w: %s", model.ErrAlreadyQueued, entry.PlayerID)
	}
	if capacity > 0 && len(s.queue) >= capacity {
		return model.ErrQueueFull
	}
	s.queueSeq++
	entry.Seq = s.queueSeq
	stored := *entry
	stored.Rating = append(model.EncryptedRating(nil), entry.Rating...)
	s.queue[entry.PlayerID] = stored
	return nil
}

func (s *Storage) RemoveQueueEntry(ctx context.Context, id model.PlayerID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[id]; !ok {
		return false, nil
	}
	delete(s.queue, id)
	return true, nil
}

func (s *Storage) GetQueueEntries(ctx context.Context) ([]model.QueueEntry, error) {
	s.mu.RLock()
	entries := make([]model.QueueEntry, 0, len(s.queue))
	for _, e := range s.queue {
		e.Rating = append(model.EncryptedRating(nil), e.Rating...)
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return model.QueueEntryLess(entries[i], entries[j])
	})
	return entries, nil
}

func (s *Storage) QueueLength(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue), nil
}

// Proposal operations

func (s *Storage) SaveProposal(ctx context.Context, proposal *model.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[proposal.ID] = proposal.Clone()
	return nil
}

func (s *Storage) GetProposal(ctx context.Context, id model.ProposalID) (*model.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return nil, model.ErrUnknownProposal
	}
	return proposal.Clone(), nil
}

func (s *Storage) ListOpenProposals(ctx context.Context) ([]*model.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	open := make([]*model.Proposal, 0)
	for _, p := range s.proposals {
		if p.Status == model.ProposalOpen {
			open = append(open, p.Clone())
		}
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	return open, nil
}

// Match operations

func (s *Storage) CommitMatch(ctx context.Context, proposal *model.Proposal, match *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *match
	s.matches[match.ID] = &m
	s.proposals[proposal.ID] = proposal.Clone()
	s.outbox[match.ID] = make(map[string]bool)
	return nil
}

func (s *Storage) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match, ok := s.matches[id]
	if !ok {
		return nil, model.ErrMatchNotFound
	}
	m := *match
	return &m, nil
}

func (s *Storage) ListMatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.Match, error) {
	s.mu.RLock()
	matches := make([]*model.Match, 0)
	for _, match := range s.matches {
		if match.CommittedAt.Before(since) {
			continue
		}
		m := *match
		matches = append(matches, &m)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CommittedAt.Equal(matches[j].CommittedAt) {
			return matches[i].CommittedAt.Before(matches[j].CommittedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Delivery outbox operations

func (s *Storage) ListUndeliveredMatches(ctx context.Context) ([]model.MatchID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]model.MatchID, 0, len(s.outbox))
	for id := range s.outbox {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Storage) AckMatchDelivery(ctx context.Context, id model.MatchID, sink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acks, ok := s.outbox[id]; ok {
		acks[sink] = true
	}
	return nil
}

func (s *Storage) MatchDeliveryAcks(ctx context.Context, id model.MatchID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acks := make([]string, 0, len(s.outbox[id]))
	for sink := range s.outbox[id] {
		acks = append(acks, sink)
	}
	sort.Strings(acks)
	return acks, nil
}

func (s *Storage) CompleteMatchDelivery(ctx context.Context, id model.MatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outbox, id)
	return nil
}
