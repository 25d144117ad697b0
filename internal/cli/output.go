package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case AuthResult:
		o.printAuthResult(v)
	case Status:
		o.printStatus(v)
	case QueueEntry:
		fmt.Fprintf(o.w, "Queued: %s since %s\n", v.PlayerID, v.EnqueuedAt.Format(time.RFC3339))
	case LeaveResult:
		fmt.Fprintf(o.w, "State: %s\n", v.State)
	case QueueSize:
		fmt.Fprintf(o.w, "Waiting players: %d\n", v.Size)
	case Proposal:
		o.printProposal(v)
	case Match:
		o.printMatch(v)
	case SealedRating:
		fmt.Fprintln(o.w, v.Rating)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// AuthResult is a registered player with their session token
type AuthResult struct {
	PlayerID     string    `json:"player_id"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// QueueEntry response type
type QueueEntry struct {
	PlayerID   string    `json:"player_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Proposal response type
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

// Match response type
type Match struct {
	ID          string    `json:"id"`
	ProposalID  string    `json:"proposal_id"`
	Players     [2]string `json:"players"`
	CommittedAt time.Time `json:"committed_at"`
}

// Status response type
type Status struct {
	PlayerID   string      `json:"player_id"`
	State      string      `json:"state"`
	ProposalID string      `json:"proposal_id,omitempty"`
	MatchID    string      `json:"match_id,omitempty"`
	Entry      *QueueEntry `json:"queue_entry,omitempty"`
	Proposal   *Proposal   `json:"proposal,omitempty"`
}

// LeaveResult response type
type LeaveResult struct {
	State string `json:"state"`
}

// QueueSize response type
type QueueSize struct {
	Size int `json:"size"`
}

// SealedRating is a locally sealed rating, base64 encoded
type SealedRating struct {
	PlayerID string `json:"player_id"`
	Rating   string `json:"rating"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printAuthResult(a AuthResult) {
	fmt.Fprintf(o.w, "Player: %s\n", a.PlayerID)
	fmt.Fprintf(o.w, "Token: %s\n", a.SessionToken)
	fmt.Fprintf(o.w, "Expires: %s\n", a.ExpiresAt.Format(time.RFC3339))
}

func (o *Output) printStatus(s Status) {
	fmt.Fprintf(o.w, "Player: %s\n", s.PlayerID)
	fmt.Fprintf(o.w, "State: %s\n", s.State)
	if s.Entry != nil {
		fmt.Fprintf(o.w, "Queued since: %s\n", s.Entry.EnqueuedAt.Format(time.RFC3339))
	}
	if s.Proposal != nil {
		fmt.Fprintln(o.w)
		o.printProposal(*s.Proposal)
	} else if s.ProposalID != "" {
		fmt.Fprintf(o.w, "Proposal: %s\n", s.ProposalID)
	}
	if s.MatchID != "" {
		fmt.Fprintf(o.w, "Match: %s\n", s.MatchID)
	}
}

func (o *Output) printProposal(p Proposal) {
	fmt.Fprintf(o.w, "Proposal: %s\n", p.ID)
	fmt.Fprintf(o.w, "Status: %s\n", p.Status)
	for i, id := range p.Players {
		accepted := "waiting"
		if p.Accepted[i] {
			accepted = "accepted"
		}
		fmt.Fprintf(o.w, "  - %s (%s)\n", id, accepted)
	}
	if p.Status == "open" {
		fmt.Fprintf(o.w, "Deadline: %s\n", p.Deadline.Format(time.RFC3339))
	}
	if p.DeclinedBy != "" {
		fmt.Fprintf(o.w, "Declined by: %s\n", p.DeclinedBy)
	}
	if p.MatchID != "" {
		fmt.Fprintf(o.w, "Match: %s\n", p.MatchID)
	}
}

func (o *Output) printMatch(m Match) {
	fmt.Fprintf(o.w, "Match: %s\n", m.ID)
	fmt.Fprintf(o.w, "Players: %s vs %s\n", m.Players[0], m.Players[1])
	fmt.Fprintf(o.w, "Committed: %s\n", m.CommittedAt.Format(time.RFC3339))
}
