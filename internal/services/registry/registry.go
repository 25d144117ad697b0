package registry

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"github.com/mcoot/fairmatch/internal/dependencies/clock"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/storage"
)

// numStripes is the number of per-player lock stripes
const numStripes = 256

// maxPlayerIDLength bounds the identity handles accepted at registration
const maxPlayerIDLength = 128

// Registry owns every player's SessionState. It is the only writer of
// sessions and provides the per-player locks that make multi-store updates
// atomic.
type Registry struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	stripes [numStripes]sync.Mutex
}

// New creates a new Registry
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Register creates a session in the registered state
func (r *Registry) Register(ctx context.Context, id model.PlayerID) (*model.Session, error) {
	if id == "" || len(id) > maxPlayerIDLength {
		return nil, model.ErrInvalidPlayerID
	}

	unlock := r.Lock(id)
	defer unlock()

	now := r.clock.Now()
	session := &model.Session{
		PlayerID:     id,
		State:        model.StateRegistered,
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	if err := r.storage.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	r.logger.Info("player registered", slog.String("player_id", string(id)))
	return session, nil
}

// Get returns the player's session
func (r *Registry) Get(ctx context.Context, id model.PlayerID) (*model.Session, error) {
	return r.storage.GetSession(ctx, id)
}

// State returns the player's current state. Unknown players are reported as
// unregistered together with ErrNotRegistered.
func (r *Registry) State(ctx context.Context, id model.PlayerID) (model.SessionState, error) {
	session, err := r.storage.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotRegistered) {
			return model.StateUnregistered, err
		}
		return "", err
	}
	return session.State, nil
}

// Lock acquires the locks of every given player and returns the release
// function. Stripes are taken in ascending order so that concurrent
// multi-player locks cannot deadlock.
func (r *Registry) Lock(ids ...model.PlayerID) (unlock func()) {
	idx := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		i := stripe(id)
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	for _, i := range idx {
		r.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			r.stripes[idx[j]].Unlock()
		}
	}
}

// Transition moves a player to the next state, applying mutate to the
// session before it is saved. The caller must hold the player's lock.
//
// ProposalID is cleared when leaving the proposed state and MatchID when
// leaving the in-match state.
func (r *Registry) Transition(ctx context.Context, id model.PlayerID, next model.SessionState, mutate func(*model.Session)) (*model.Session, error) {
	session, err := r.storage.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if !session.State.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, session.State, next)
	}

	prev := session.State
	session.State = next
	session.UpdatedAt = r.clock.Now()
	if next != model.StateProposed {
		session.ProposalID = ""
	}
	if next != model.StateInMatch {
		session.MatchID = ""
	}
	if mutate != nil {
		mutate(session)
	}

	if err := r.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	r.logger.Debug("session transition",
		slog.String("player_id", string(id)),
		slog.String("from", string(prev)),
		slog.String("to", string(next)))
	return session, nil
}

func stripe(id model.PlayerID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % numStripes)
}
