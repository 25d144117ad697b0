package model

import "time"

// MatchID uniquely identifies a committed match
type MatchID string

// Match is the immutable outcome of a committed proposal. Downstream consumers
// deduplicate by ID.
type Match struct {
	ID          MatchID
	ProposalID  ProposalID
	Players     [2]PlayerID
	CommittedAt time.Time
}

// HasPlayer returns true if the player is part of the match
func (m *Match) HasPlayer(playerID PlayerID) bool {
	return m.Players[0] == playerID || m.Players[1] == playerID
}
