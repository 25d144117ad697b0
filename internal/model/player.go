package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// EncryptedRating is an opaque, sealed skill value. Only the rating oracle can
// compare two of them; nothing else in the system can read one.
type EncryptedRating []byte

// SessionState is the lifecycle state of a player in matchmaking
type SessionState string

const (
	StateUnregistered SessionState = "unregistered"
	StateRegistered   SessionState = "registered" // Known, not waiting
	StateQueued       SessionState = "queued"     // In the queue
	StateProposed     SessionState = "proposed"   // Part of one open proposal
	StateInMatch      SessionState = "in_match"   // Committed to a match
)

// allowedTransitions lists every legal SessionState edge
var allowedTransitions = map[SessionState][]SessionState{
	StateRegistered: {StateQueued},
	StateQueued:     {StateRegistered, StateProposed},
	StateProposed:   {StateRegistered, StateQueued, StateInMatch},
	StateInMatch:    {StateRegistered},
}

// CanTransitionTo reports whether moving from s to next is a legal edge
func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid returns true for the five known states
func (s SessionState) Valid() bool {
	switch s {
	case StateUnregistered, StateRegistered, StateQueued, StateProposed, StateInMatch:
		return true
	}
	return false
}

// Session is the registry's record for one player
type Session struct {
	PlayerID PlayerID
	State    SessionState

	// Rating is the player's current sealed rating. It is refreshed on enqueue,
	// which is only possible from the registered state.
	Rating EncryptedRating

	// Set while State is StateProposed
	ProposalID ProposalID
	// Set while State is StateInMatch
	MatchID MatchID

	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	c := *s
	if s.Rating != nil {
		c.Rating = append(EncryptedRating(nil), s.Rating...)
	}
	return &c
}
