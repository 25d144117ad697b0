package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/fairmatch/internal/dependencies/ids"
	"github.com/mcoot/fairmatch/internal/model"
)

// SequentialIDs generates predictable ids (prop-1, match-1, ...) for tests
type SequentialIDs struct {
	mu        sync.Mutex
	proposals int
	matches   int
}

// Ensure SequentialIDs implements Generator
var _ ids.Generator = (*SequentialIDs)(nil)

// NewSequentialIDs creates a new SequentialIDs
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// ProposalID returns the next proposal id
func (g *SequentialIDs) ProposalID() model.ProposalID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.proposals++
	return model.ProposalID(fmt.Sprintf("prop-%d", g.proposals))
}

// MatchID returns the next match id
func (g *SequentialIDs) MatchID() model.MatchID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.matches++
	return model.MatchID(fmt.Sprintf("match-%d", g.matches))
}
