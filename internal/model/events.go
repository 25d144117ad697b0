package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Queue events
	EventPlayerQueued EventType = "player_queued"
	EventPlayerLeft   EventType = "player_left"

	// Proposal events
	EventProposalCreated   EventType = "proposal_created"
	EventProposalAccepted  EventType = "proposal_accepted"
	EventProposalCancelled EventType = "proposal_cancelled"
	EventProposalExpired   EventType = "proposal_expired"

	// Match events
	EventMatchCommitted EventType = "match_committed"
	EventMatchReleased  EventType = "match_released"
)

// Event is the base structure for all events
type Event struct {
	Type       EventType
	Timestamp  time.Time
	PlayerIDs  []PlayerID // Players the event concerns
	ProposalID ProposalID // Empty for queue-only events
	MatchID    MatchID    // Set for match events
	Payload    any        // Type-specific data
}

// ProposalPayload carries the proposal for proposal events
type ProposalPayload struct {
	Proposal Proposal
}

// MatchPayload carries the committed match
type MatchPayload struct {
	Match Match
}

// RequeuedPayload lists which players went back to the queue after a
// cancelled or expired proposal
type RequeuedPayload struct {
	Proposal   Proposal
	Requeued   []PlayerID
	Registered []PlayerID
}

// MatchCommittedEvent builds the event announcing a committed match. It is
// the same whether emitted at commit time or replayed later.
func MatchCommittedEvent(m Match) Event {
	return Event{
		Type:       EventMatchCommitted,
		Timestamp:  m.CommittedAt,
		PlayerIDs:  m.Players[:],
		ProposalID: m.ProposalID,
		MatchID:    m.ID,
		Payload:    MatchPayload{Match: m},
	}
}
