package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairmatch/internal/dependencies/mocks"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/rating"
	"github.com/mcoot/fairmatch/internal/services/proposal"
	"github.com/mcoot/fairmatch/internal/services/queue"
	"github.com/mcoot/fairmatch/internal/services/registry"
	"github.com/mcoot/fairmatch/internal/storage/memory"
	"github.com/mcoot/fairmatch/internal/testutil"
)

type MatcherSuite struct {
	suite.Suite
	clock       *mocks.MockClock
	comparator  *mocks.PlainComparator
	registry    *registry.Registry
	queue       *queue.Service
	coordinator *proposal.Coordinator
	matcher     *Matcher
	ctx         context.Context
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherSuite))
}

func (s *MatcherSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.comparator = mocks.NewPlainComparator()
	s.ctx = context.Background()
	s.build(s.comparator, Config{Threshold: 100})
}

func (s *MatcherSuite) build(comparator rating.Comparator, cfg Config) {
	logger := testutil.NopLogger()
	storage := memory.New()
	recorder := mocks.NewEventRecorder()
	s.registry = registry.New(storage, s.clock, logger)
	s.queue = queue.New(storage, s.registry, s.clock, recorder, logger, queue.Config{})
	s.coordinator = proposal.New(storage, s.registry, s.queue, s.clock, mocks.NewSequentialIDs(), recorder, logger,
		proposal.Config{AcceptWindow: 15 * time.Second})
	s.matcher = New(s.queue, s.coordinator, comparator, s.clock, logger, cfg)
}

func (s *MatcherSuite) enqueue(id model.PlayerID, r model.EncryptedRating) {
	if _, err := s.registry.Get(s.ctx, id); err != nil {
		_, err := s.registry.Register(s.ctx, id)
		s.Require().NoError(err)
	}
	_, err := s.queue.Enqueue(s.ctx, id, r)
	s.Require().NoError(err)
	s.clock.Advance(time.Millisecond)
}

func (s *MatcherSuite) state(id model.PlayerID) model.SessionState {
	state, _ := s.registry.State(s.ctx, id)
	return state
}

func (s *MatcherSuite) pairs(result *CycleResult) [][2]model.PlayerID {
	out := make([][2]model.PlayerID, 0, len(result.Proposals))
	for _, p := range result.Proposals {
		out = append(out, p.Players)
	}
	return out
}

// Pairing tests

func (s *MatcherSuite) TestEmptyQueue() {
	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, result.Scanned)
	s.Empty(result.Proposals)
}

func (s *MatcherSuite) TestSinglePlayerStaysQueued() {
	s.enqueue("a", mocks.PlainRating(1000))

	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Empty(result.Proposals)
	s.Equal(model.StateQueued, s.state("a"))
}

func (s *MatcherSuite) TestPairsCompatiblePlayers() {
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("b", mocks.PlainRating(1050))

	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal([][2]model.PlayerID{{"a", "b"}}, s.pairs(result))
	s.Equal(model.StateProposed, s.state("a"))
	s.Equal(model.StateProposed, s.state("b"))

	size, _ := s.queue.Size(s.ctx)
	s.Equal(0, size)
}

func (s *MatcherSuite) TestOldestPlayerIsAnchor() {
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("b", mocks.PlainRating(2000))
	s.enqueue("c", mocks.PlainRating(2010))
	s.enqueue("d", mocks.PlainRating(1020))

	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal([][2]model.PlayerID{{"a", "d"}, {"b", "c"}}, s.pairs(result))
}

func (s *MatcherSuite) TestAnchorTakesFirstCompatibleNotClosest() {
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("b", mocks.PlainRating(1090))
	s.enqueue("c", mocks.PlainRating(1000))

	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal([][2]model.PlayerID{{"a", "b"}}, s.pairs(result))
	s.Equal(model.StateQueued, s.state("c"))
}

func (s *MatcherSuite) TestIncompatiblePlayersStayQueued() {
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("b", mocks.PlainRating(1500))

	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Empty(result.Proposals)
	s.Equal(model.StateQueued, s.state("a"))
	s.Equal(model.StateQueued, s.state("b"))
}

func (s *MatcherSuite) TestProposedPlayersAreNotRescanned() {
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("b", mocks.PlainRating(1000))
	_, _ = s.matcher.RunCycle(s.ctx)

	s.enqueue("c", mocks.PlainRating(1000))
	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Scanned)
	s.Empty(result.Proposals)
}

// Data error tests

func (s *MatcherSuite) TestMalformedRatingIsSkippedUntilCorrected() {
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("d", model.EncryptedRating("not-a-rating"))
	s.enqueue("b", mocks.PlainRating(1010))

	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal([][2]model.PlayerID{{"a", "b"}}, s.pairs(result))
	s.Equal([]model.PlayerID{"d"}, result.DataErrors)
	s.Equal(model.StateQueued, s.state("d"))

	// Still skipped with a new compatible partner available
	s.enqueue("c", mocks.PlainRating(1000))
	result, err = s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Empty(result.Proposals)
	s.Equal(model.StateQueued, s.state("d"))

	// Corrected: D leaves, refreshes the rating and comes back
	_, err = s.queue.Dequeue(s.ctx, "d")
	s.Require().NoError(err)
	s.enqueue("d", mocks.PlainRating(1000))

	result, err = s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal([][2]model.PlayerID{{"c", "d"}}, s.pairs(result))
}

func (s *MatcherSuite) TestBadRatingComparedOncePerCycle() {
	s.enqueue("d", model.EncryptedRating("bad"))
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("b", mocks.PlainRating(5000))
	s.enqueue("c", mocks.PlainRating(9000))

	_, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)

	// d vs a fails once, then a-b, a-c, b-c
	s.Equal(4, s.comparator.Calls())
}

// Widening tests

func (s *MatcherSuite) TestWideningEventuallyPairsDistantPlayers() {
	s.build(s.comparator, Config{
		Threshold: 100,
		Widening:  WideningPolicy{After: 30 * time.Second, Every: 10 * time.Second, Step: 50, Max: 500},
	})
	s.enqueue("a", mocks.PlainRating(1000))
	s.enqueue("b", mocks.PlainRating(1300))

	s.clock.Advance(50 * time.Second)
	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Empty(result.Proposals)

	s.clock.Advance(10 * time.Second)
	result, err = s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Len(result.Proposals, 1)
}

func (s *MatcherSuite) TestWithSealedRatings() {
	sealer, err := rating.NewSealer([]byte("secret"))
	s.Require().NoError(err)
	s.build(rating.NewAEADComparator(sealer), Config{Threshold: 100})

	seal := func(id model.PlayerID, v int) model.EncryptedRating {
		r, err := sealer.Seal(id, v)
		s.Require().NoError(err)
		return r
	}

	s.enqueue("a", seal("a", 1500))
	s.enqueue("b", seal("a", 1500)) // issued to someone else
	s.enqueue("c", seal("c", 1550))

	result, err := s.matcher.RunCycle(s.ctx)
	s.Require().NoError(err)
	s.Equal([][2]model.PlayerID{{"a", "c"}}, s.pairs(result))
	s.Equal([]model.PlayerID{"b"}, result.DataErrors)
}

func TestWideningPolicyThreshold(t *testing.T) {
	p := WideningPolicy{After: 30 * time.Second, Every: 10 * time.Second, Step: 50, Max: 300}

	tests := []struct {
		waited time.Duration
		want   int
	}{
		{0, 100},
		{29 * time.Second, 100},
		{30 * time.Second, 150},
		{39 * time.Second, 150},
		{40 * time.Second, 200},
		{time.Hour, 300},
	}
	for _, tt := range tests {
		t.Run(tt.waited.String(), func(t *testing.T) {
			if got := p.Threshold(100, tt.waited); got != tt.want {
				t.Errorf("Threshold(100, %s) = %d, want %d", tt.waited, got, tt.want)
			}
		})
	}

	if got := (WideningPolicy{}).Threshold(100, time.Hour); got != 100 {
		t.Errorf("zero policy widened to %d", got)
	}
}
