package redis

import (
	"fmt"

	"github.com/mcoot/fairmatch/internal/model"
)

// Key prefix for all matchmaking data
const keyPrefix = "fairmatch"

// sessionKey returns the Redis key for a player's Session
func sessionKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// queueKey returns the Redis key for the HASH of player_id -> QueueEntry
func queueKey() string {
	return fmt.Sprintf("%s:queue", keyPrefix)
}

// queueSeqKey returns the Redis key for the queue insertion counter
func queueSeqKey() string {
	return fmt.Sprintf("%s:queue:seq", keyPrefix)
}

// proposalKey returns the Redis key for a Proposal
func proposalKey(id model.ProposalID) string {
	return fmt.Sprintf("%s:proposal:%s", keyPrefix, id)
}

// openProposalsIndexKey returns the Redis key for the SET of open proposal keys
func openProposalsIndexKey() string {
	return fmt.Sprintf("%s:idx:open_proposals", keyPrefix)
}

// matchKey returns the Redis key for a Match
func matchKey(id model.MatchID) string {
	return fmt.Sprintf("%s:match:%s", keyPrefix, id)
}

// matchIndexKey returns the Redis key for the ZSET of match ids scored by
// commit time in unix milliseconds
func matchIndexKey() string {
	return fmt.Sprintf("%s:idx:matches", keyPrefix)
}

// outboxKey returns the Redis key for the SET of undelivered match ids
func outboxKey() string {
	return fmt.Sprintf("%s:outbox:matches", keyPrefix)
}

// outboxAcksKey returns the Redis key for the SET of sinks that have handled
// an undelivered match
func outboxAcksKey(id model.MatchID) string {
	return fmt.Sprintf("%s:outbox:acks:%s", keyPrefix, id)
}
