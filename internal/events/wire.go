package events

import (
	"encoding/json"
	"time"

	"github.com/mcoot/fairmatch/internal/model"
)

// Envelope is the JSON form of an event shared by every external sink
type Envelope struct {
	Type       model.EventType  `json:"type"`
	Timestamp  time.Time        `json:"timestamp"`
	PlayerIDs  []model.PlayerID `json:"player_ids,omitempty"`
	ProposalID model.ProposalID `json:"proposal_id,omitempty"`
	MatchID    model.MatchID    `json:"match_id,omitempty"`
	Proposal   *ProposalWire    `json:"proposal,omitempty"`
	Match      *MatchWire       `json:"match,omitempty"`
	Requeued   []model.PlayerID `json:"requeued,omitempty"`
	Registered []model.PlayerID `json:"registered,omitempty"`
}

// ProposalWire is the JSON form of a proposal
type ProposalWire struct {
	ID         model.ProposalID     `json:"id"`
	Players    [2]model.PlayerID    `json:"players"`
	Status     model.ProposalStatus `json:"status"`
	Accepted   [2]bool              `json:"accepted"`
	CreatedAt  time.Time            `json:"created_at"`
	Deadline   time.Time            `json:"deadline"`
	DeclinedBy model.PlayerID       `json:"declined_by,omitempty"`
	MatchID    model.MatchID        `json:"match_id,omitempty"`
}

// MatchWire is the JSON form of a match
type MatchWire struct {
	ID          model.MatchID     `json:"id"`
	ProposalID  model.ProposalID  `json:"proposal_id"`
	Players     [2]model.PlayerID `json:"players"`
	CommittedAt time.Time         `json:"committed_at"`
}

// NewProposalWire converts a proposal
func NewProposalWire(p *model.Proposal) *ProposalWire {
	return &ProposalWire{
		ID:         p.ID,
		Players:    p.Players,
		Status:     p.Status,
		Accepted:   p.Accepted,
		CreatedAt:  p.CreatedAt,
		Deadline:   p.Deadline,
		DeclinedBy: p.DeclinedBy,
		MatchID:    p.MatchID,
	}
}

// NewMatchWire converts a match
func NewMatchWire(m *model.Match) *MatchWire {
	return &MatchWire{
		ID:          m.ID,
		ProposalID:  m.ProposalID,
		Players:     m.Players,
		CommittedAt: m.CommittedAt,
	}
}

// NewEnvelope converts an event, flattening its payload
func NewEnvelope(event model.Event) Envelope {
	env := Envelope{
		Type:       event.Type,
		Timestamp:  event.Timestamp,
		PlayerIDs:  event.PlayerIDs,
		ProposalID: event.ProposalID,
		MatchID:    event.MatchID,
	}

	switch p := event.Payload.(type) {
	case model.ProposalPayload:
		env.Proposal = NewProposalWire(&p.Proposal)
	case model.MatchPayload:
		env.Match = NewMatchWire(&p.Match)
	case model.RequeuedPayload:
		env.Proposal = NewProposalWire(&p.Proposal)
		env.Requeued = p.Requeued
		env.Registered = p.Registered
	}
	return env
}

// Encode returns the JSON envelope of an event
func Encode(event model.Event) ([]byte, error) {
	return json.Marshal(NewEnvelope(event))
}
