package response

import (
	"time"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/services/auth"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
)

// AuthResponse is the response for player registration
type AuthResponse struct {
	PlayerID     string    `json:"player_id"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		PlayerID:     string(s.PlayerID),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// QueueEntry represents a waiting player. The rating is never echoed back.
type QueueEntry struct {
	PlayerID   string    `json:"player_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// QueueEntryFromModel converts model.QueueEntry
func QueueEntryFromModel(e *model.QueueEntry) QueueEntry {
	return QueueEntry{
		PlayerID:   string(e.PlayerID),
		EnqueuedAt: e.EnqueuedAt,
	}
}

// Proposal represents a match proposal
type Proposal struct {
	ID         string     `json:"id"`
	Players    [2]string  `json:"players"`
	Status     string     `json:"status"`
	Accepted   [2]bool    `json:"accepted"`
	CreatedAt  time.Time  `json:"created_at"`
	Deadline   time.Time  `json:"deadline"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	DeclinedBy string     `json:"declined_by,omitempty"`
	MatchID    string     `json:"match_id,omitempty"`
}

// ProposalFromModel converts model.Proposal
func ProposalFromModel(p *model.Proposal) Proposal {
	var resolvedAt *time.Time
	if !p.ResolvedAt.IsZero() {
		t := p.ResolvedAt
		resolvedAt = &t
	}
	return Proposal{
		ID:         string(p.ID),
		Players:    [2]string{string(p.Players[0]), string(p.Players[1])},
		Status:     string(p.Status),
		Accepted:   p.Accepted,
		CreatedAt:  p.CreatedAt,
		Deadline:   p.Deadline,
		ResolvedAt: resolvedAt,
		DeclinedBy: string(p.DeclinedBy),
		MatchID:    string(p.MatchID),
	}
}

// Match represents a committed match
type Match struct {
	ID          string    `json:"id"`
	ProposalID  string    `json:"proposal_id"`
	Players     [2]string `json:"players"`
	CommittedAt time.Time `json:"committed_at"`
}

// MatchFromModel converts model.Match
func MatchFromModel(m *model.Match) Match {
	return Match{
		ID:          string(m.ID),
		ProposalID:  string(m.ProposalID),
		Players:     [2]string{string(m.Players[0]), string(m.Players[1])},
		CommittedAt: m.CommittedAt,
	}
}

// Status is a player's matchmaking status
type Status struct {
	PlayerID   string      `json:"player_id"`
	State      string      `json:"state"`
	ProposalID string      `json:"proposal_id,omitempty"`
	MatchID    string      `json:"match_id,omitempty"`
	Entry      *QueueEntry `json:"queue_entry,omitempty"`
	Proposal   *Proposal   `json:"proposal,omitempty"`
}

// StatusFromService converts matchmaking.Status
func StatusFromService(s *matchmaking.Status) Status {
	resp := Status{
		PlayerID:   string(s.PlayerID),
		State:      string(s.State),
		ProposalID: string(s.ProposalID),
		MatchID:    string(s.MatchID),
	}
	if s.Entry != nil {
		e := QueueEntryFromModel(s.Entry)
		resp.Entry = &e
	}
	if s.Proposal != nil {
		p := ProposalFromModel(s.Proposal)
		resp.Proposal = &p
	}
	return resp
}

// LeaveResponse is the response after leaving the queue
type LeaveResponse struct {
	State string `json:"state"`
}

// QueueSize is the response for the queue size endpoint
type QueueSize struct {
	Size int `json:"size"`
}
