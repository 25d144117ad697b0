package storage

import (
	"context"
	"time"

	"github.com/mcoot/fairmatch/internal/model"
)

// Storage defines the interface for matchmaking state persistence.
//
// Implementations guarantee single-operation atomicity only. Multi-step
// invariants (a player is in the queue iff their session is queued) are held
// by callers under the registry's per-player locks.
type Storage interface {
	// Session operations
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id model.PlayerID) (*model.Session, error)
	SaveSession(ctx context.Context, session *model.Session) error

	// Queue operations

	// PushQueueEntry appends entry unless the player is already queued or,
	// with capacity > 0, the queue already holds capacity entries. The check
	// and the append happen as one step.
	PushQueueEntry(ctx context.Context, entry *model.QueueEntry, capacity int) error
	RemoveQueueEntry(ctx context.Context, id model.PlayerID) (bool, error)
	GetQueueEntries(ctx context.Context) ([]model.QueueEntry, error)
	QueueLength(ctx context.Context) (int, error)

	// Proposal operations
	SaveProposal(ctx context.Context, proposal *model.Proposal) error
	GetProposal(ctx context.Context, id model.ProposalID) (*model.Proposal, error)
	ListOpenProposals(ctx context.Context) ([]*model.Proposal, error)

	// Match operations

	// CommitMatch stores the committed proposal and its match together. The
	// match joins the commit-time index and the delivery outbox in the same
	// step.
	CommitMatch(ctx context.Context, proposal *model.Proposal, match *model.Match) error
	GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error)
	// ListMatchesSince returns matches committed at or after since, oldest
	// first, at most limit of them (limit <= 0 means all)
	ListMatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.Match, error)

	Outbox
}

// Outbox tracks committed matches that have not yet reached every event sink
type Outbox interface {
	GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error)
	ListUndeliveredMatches(ctx context.Context) ([]model.MatchID, error)
	// AckMatchDelivery records that sink has handled the match
	AckMatchDelivery(ctx context.Context, id model.MatchID, sink string) error
	MatchDeliveryAcks(ctx context.Context, id model.MatchID) ([]string, error)
	// CompleteMatchDelivery drops the match from the outbox along with its acks
	CompleteMatchDelivery(ctx context.Context, id model.MatchID) error
}
