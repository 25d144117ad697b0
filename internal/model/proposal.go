package model

import "time"

// ProposalID uniquely identifies a match proposal
type ProposalID string

// ProposalStatus is the state of a proposal
type ProposalStatus string

const (
	ProposalOpen      ProposalStatus = "open"
	ProposalCommitted ProposalStatus = "committed" // Both accepted before the deadline
	ProposalExpired   ProposalStatus = "expired"   // Deadline passed first
	ProposalCancelled ProposalStatus = "cancelled" // A participant declined
)

// IsTerminal returns true once the proposal can no longer change
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalCommitted || s == ProposalExpired || s == ProposalCancelled
}

// Proposal is a tentative pairing awaiting both players' confirmation
type Proposal struct {
	ID      ProposalID
	Players [2]PlayerID
	Status  ProposalStatus

	// Accepted[i] is the acceptance flag of Players[i]
	Accepted [2]bool

	// QueuedAt[i] is when Players[i] originally entered the queue. Only used
	// when re-queueing preserves wait time.
	QueuedAt [2]time.Time

	CreatedAt  time.Time
	Deadline   time.Time
	ResolvedAt time.Time

	DeclinedBy PlayerID // Set when cancelled
	MatchID    MatchID  // Set when committed
}

// Index returns the slot of the player, or -1 if they are not a participant
func (p *Proposal) Index(playerID PlayerID) int {
	for i, id := range p.Players {
		if id == playerID {
			return i
		}
	}
	return -1
}

// IsParticipant returns true if the player is one of the two named players
func (p *Proposal) IsParticipant(playerID PlayerID) bool {
	return p.Index(playerID) >= 0
}

// Other returns the other participant
func (p *Proposal) Other(playerID PlayerID) PlayerID {
	switch p.Index(playerID) {
	case 0:
		return p.Players[1]
	case 1:
		return p.Players[0]
	default:
		return ""
	}
}

// AllAccepted returns true if both players have accepted
func (p *Proposal) AllAccepted() bool {
	return p.Accepted[0] && p.Accepted[1]
}

// DeadlinePassed returns true if now is at or after the deadline
func (p *Proposal) DeadlinePassed(now time.Time) bool {
	return !now.Before(p.Deadline)
}

// Clone returns a copy of the proposal
func (p *Proposal) Clone() *Proposal {
	c := *p
	return &c
}
