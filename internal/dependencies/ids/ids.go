package ids

import (
	"github.com/google/uuid"

	"github.com/mcoot/fairmatch/internal/model"
)

// Generator produces identifiers for proposals and matches
type Generator interface {
	ProposalID() model.ProposalID
	MatchID() model.MatchID
}

// UUIDGenerator generates random (v4) UUID based identifiers
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// ProposalID returns a fresh proposal identifier
func (g *UUIDGenerator) ProposalID() model.ProposalID {
	return model.ProposalID("prop_" + uuid.NewString())
}

// MatchID returns a fresh match identifier
func (g *UUIDGenerator) MatchID() model.MatchID {
	return model.MatchID("match_" + uuid.NewString())
}
