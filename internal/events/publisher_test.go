package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/storage/memory"
	"github.com/mcoot/fairmatch/internal/testutil"
)

type recordingSink struct {
	name string

	mu       sync.Mutex
	failures int // Calls left to fail
	events   []model.Event
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Handle(ctx context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("sink unavailable")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) matchIDs() []model.MatchID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]model.MatchID, 0, len(r.events))
	for _, e := range r.events {
		ids = append(ids, e.MatchID)
	}
	return ids
}

type BusSuite struct {
	suite.Suite
	storage *memory.Storage
	ctx     context.Context
	now     time.Time
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.storage = memory.New()
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// commit stores a match the way the coordinator does and returns its event
func (s *BusSuite) commit(id model.MatchID) model.Event {
	m := &model.Match{
		ID:          id,
		ProposalID:  model.ProposalID("p-" + id),
		Players:     [2]model.PlayerID{"a", "b"},
		CommittedAt: s.now,
	}
	p := &model.Proposal{ID: m.ProposalID, Players: m.Players, Status: model.ProposalCommitted, MatchID: id}
	s.Require().NoError(s.storage.CommitMatch(s.ctx, p, m))
	return model.MatchCommittedEvent(*m)
}

func (s *BusSuite) undelivered() []model.MatchID {
	ids, err := s.storage.ListUndeliveredMatches(s.ctx)
	s.Require().NoError(err)
	return ids
}

func (s *BusSuite) TestPublishReachesEverySink() {
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	bus := NewBus(testutil.NopLogger(), nil, first, second)

	bus.Publish(s.ctx, model.Event{Type: model.EventMatchCommitted, MatchID: "m1"})

	s.Len(first.events, 1)
	s.Len(second.events, 1)
	s.Equal(model.MatchID("m1"), second.events[0].MatchID)
}

func (s *BusSuite) TestFailingSinkDoesNotStopOthers() {
	failing := &recordingSink{name: "failing", failures: 1}
	after := &recordingSink{name: "after"}
	bus := NewBus(testutil.NopLogger(), nil, failing, after)

	bus.Publish(s.ctx, model.Event{Type: model.EventPlayerQueued})

	s.Len(after.events, 1)
}

func (s *BusSuite) TestDeliveredMatchLeavesOutbox() {
	sink := &recordingSink{name: "archive"}
	bus := NewBus(testutil.NopLogger(), s.storage, sink)

	bus.Publish(s.ctx, s.commit("m1"))

	s.Equal([]model.MatchID{"m1"}, sink.matchIDs())
	s.Empty(s.undelivered())
}

func (s *BusSuite) TestFailedSinkGetsMatchOnRedelivery() {
	archive := &recordingSink{name: "archive", failures: 1}
	nats := &recordingSink{name: "nats"}
	bus := NewBus(testutil.NopLogger(), s.storage, archive, nats)

	bus.Publish(s.ctx, s.commit("m1"))

	s.Empty(archive.matchIDs())
	s.Equal([]model.MatchID{"m1"}, s.undelivered())
	acks, err := s.storage.MatchDeliveryAcks(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal([]string{"nats"}, acks)

	n, err := bus.Redeliver(s.ctx, s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Equal([]model.MatchID{"m1"}, archive.matchIDs())
	// The sink that already had it is not sent it again
	s.Equal([]model.MatchID{"m1"}, nats.matchIDs())
	s.Empty(s.undelivered())
}

func (s *BusSuite) TestRedeliveryKeepsRetrying() {
	archive := &recordingSink{name: "archive", failures: 3}
	bus := NewBus(testutil.NopLogger(), s.storage, archive)

	bus.Publish(s.ctx, s.commit("m1"))

	for i := 0; i < 2; i++ {
		n, err := bus.Redeliver(s.ctx, s.now.Add(time.Second))
		s.Require().NoError(err)
		s.Zero(n)
		s.Equal([]model.MatchID{"m1"}, s.undelivered())
	}

	n, err := bus.Redeliver(s.ctx, s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal([]model.MatchID{"m1"}, archive.matchIDs())
}

func (s *BusSuite) TestMatchCommittedWithoutPublishIsRedelivered() {
	sink := &recordingSink{name: "archive"}
	bus := NewBus(testutil.NopLogger(), s.storage, sink)

	// The process stopped between commit and publish
	s.commit("m1")

	n, err := bus.Redeliver(s.ctx, s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Require().Len(sink.events, 1)
	event := sink.events[0]
	s.Equal(model.EventMatchCommitted, event.Type)
	s.Equal([]model.PlayerID{"a", "b"}, event.PlayerIDs)
	payload, ok := event.Payload.(model.MatchPayload)
	s.Require().True(ok)
	s.Equal(model.MatchID("m1"), payload.Match.ID)
}

func (s *BusSuite) TestRedeliverySkipsRecentMatches() {
	sink := &recordingSink{name: "archive"}
	bus := NewBus(testutil.NopLogger(), s.storage, sink)
	s.commit("m1")

	n, err := bus.Redeliver(s.ctx, s.now)
	s.Require().NoError(err)
	s.Zero(n)
	s.Empty(sink.events)
	s.Equal([]model.MatchID{"m1"}, s.undelivered())
}

func (s *BusSuite) TestOtherEventsAreNotTracked() {
	sink := &recordingSink{name: "archive", failures: 1}
	bus := NewBus(testutil.NopLogger(), s.storage, sink)

	bus.Publish(s.ctx, model.Event{Type: model.EventProposalCreated, ProposalID: "p1"})

	s.Empty(s.undelivered())
}
