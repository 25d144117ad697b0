package registry

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairmatch/internal/dependencies/mocks"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/storage/memory"
	"github.com/mcoot/fairmatch/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(s.storage, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

// Register tests

func (s *RegistrySuite) TestRegisterCreatesRegisteredSession() {
	session, err := s.registry.Register(s.ctx, "alice")
	s.Require().NoError(err)

	s.Equal(model.StateRegistered, session.State)
	s.Equal(s.clock.Now(), session.RegisteredAt)
}

func (s *RegistrySuite) TestRegisterTwiceFails() {
	_, err := s.registry.Register(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.registry.Register(s.ctx, "alice")
	s.ErrorIs(err, model.ErrAlreadyRegistered)
}

func (s *RegistrySuite) TestRegisterRejectsInvalidID() {
	_, err := s.registry.Register(s.ctx, "")
	s.ErrorIs(err, model.ErrInvalidPlayerID)

	_, err = s.registry.Register(s.ctx, model.PlayerID(strings.Repeat("x", 200)))
	s.ErrorIs(err, model.ErrInvalidPlayerID)
}

// State tests

func (s *RegistrySuite) TestStateOfUnknownPlayer() {
	state, err := s.registry.State(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrNotRegistered)
	s.Equal(model.StateUnregistered, state)
}

func (s *RegistrySuite) TestStateAfterRegister() {
	_, _ = s.registry.Register(s.ctx, "alice")

	state, err := s.registry.State(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.StateRegistered, state)
}

// Transition tests

func (s *RegistrySuite) TestTransitionAlongLegalEdge() {
	_, _ = s.registry.Register(s.ctx, "alice")
	s.clock.Advance(time.Second)

	session, err := s.registry.Transition(s.ctx, "alice", model.StateQueued, nil)
	s.Require().NoError(err)
	s.Equal(model.StateQueued, session.State)
	s.Equal(s.clock.Now(), session.UpdatedAt)
}

func (s *RegistrySuite) TestTransitionRejectsIllegalEdge() {
	_, _ = s.registry.Register(s.ctx, "alice")

	_, err := s.registry.Transition(s.ctx, "alice", model.StateInMatch, nil)
	s.ErrorIs(err, model.ErrInvalidTransition)

	state, _ := s.registry.State(s.ctx, "alice")
	s.Equal(model.StateRegistered, state)
}

func (s *RegistrySuite) TestTransitionUnknownPlayer() {
	_, err := s.registry.Transition(s.ctx, "nobody", model.StateQueued, nil)
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *RegistrySuite) TestTransitionAppliesMutation() {
	_, _ = s.registry.Register(s.ctx, "alice")
	_, _ = s.registry.Transition(s.ctx, "alice", model.StateQueued, nil)

	session, err := s.registry.Transition(s.ctx, "alice", model.StateProposed, func(sess *model.Session) {
		sess.ProposalID = "p1"
	})
	s.Require().NoError(err)
	s.Equal(model.ProposalID("p1"), session.ProposalID)
}

func (s *RegistrySuite) TestTransitionClearsProposalOnExit() {
	_, _ = s.registry.Register(s.ctx, "alice")
	_, _ = s.registry.Transition(s.ctx, "alice", model.StateQueued, nil)
	_, _ = s.registry.Transition(s.ctx, "alice", model.StateProposed, func(sess *model.Session) {
		sess.ProposalID = "p1"
	})

	session, err := s.registry.Transition(s.ctx, "alice", model.StateRegistered, nil)
	s.Require().NoError(err)
	s.Empty(session.ProposalID)
}

// Lock tests

func (s *RegistrySuite) TestLockHandlesDuplicates() {
	unlock := s.registry.Lock("alice", "alice", "bob")
	unlock()

	// Would deadlock if a stripe had been left held
	unlock = s.registry.Lock("bob", "alice")
	unlock()
}

func (s *RegistrySuite) TestLockSerializesSamePlayer() {
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.registry.Lock("alice")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	s.Equal(50, counter)
}

func (s *RegistrySuite) TestOppositeOrderLocksDoNotDeadlock() {
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.registry.Lock("alice", "bob")()
		}()
		go func() {
			defer wg.Done()
			s.registry.Lock("bob", "alice")()
		}()
	}
	wg.Wait()
}
