package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/storage"
)

// pushQueueEntryScript admits a queue entry unless the player is already
// queued or the queue is at capacity.
// KEYS[1] queue hash; ARGV[1] player id, ARGV[2] entry JSON, ARGV[3] capacity.
// Returns 1 on success, 0 if already queued, -1 if full.
var pushQueueEntryScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
	return 0
end
local capacity = tonumber(ARGV[3])
if capacity > 0 and redis.call("HLEN", KEYS[1]) >= capacity then
	return -1
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a new Redis storage instance
func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis-storage")),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, sessionKey(session.PlayerID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrAlreadyRegistered, session.PlayerID)
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.PlayerID) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotRegistered
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	// SET XX: only overwrite a session that was created through CreateSession
	ok, err := s.client.SetXX(ctx, sessionKey(session.PlayerID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNotRegistered
	}
	return nil
}

// Queue operations

func (s *Storage) PushQueueEntry(ctx context.Context, entry *model.QueueEntry, capacity int) error {
	// A rejected push still consumes a sequence number; gaps are harmless
	seq, err := s.client.Incr(ctx, queueSeqKey()).Result()
	if err != nil {
		return err
	}
	entry.Seq = seq

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	res, err := pushQueueEntryScript.Run(ctx, s.client,
		[]string{queueKey()},
		string(entry.PlayerID), data, strconv.Itoa(capacity)).Int()
	if err != nil {
		return err
	}
	switch res {
	case 0:
		return fmt.Errorf("%w: %s", model.ErrAlreadyQueued, entry.PlayerID)
	case -1:
		return model.ErrQueueFull
	}
	return nil
}

func (s *Storage) RemoveQueueEntry(ctx context.Context, id model.PlayerID) (bool, error) {
	n, err := s.client.HDel(ctx, queueKey(), string(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) GetQueueEntries(ctx context.Context) ([]model.QueueEntry, error) {
	// HVALS reads the whole hash in one command, so the result is a
	// point-in-time view
	values, err := s.client.HVals(ctx, queueKey()).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]model.QueueEntry, 0, len(values))
	for _, val := range values {
		var entry model.QueueEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return model.QueueEntryLess(entries[i], entries[j])
	})
	return entries, nil
}

func (s *Storage) QueueLength(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, queueKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Proposal operations

func (s *Storage) SaveProposal(ctx context.Context, proposal *model.Proposal) error {
	data, err := json.Marshal(proposal)
	if err != nil {
		return err
	}

	key := proposalKey(proposal.ID)

	// Record and open index are updated in one transaction
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if proposal.Status == model.ProposalOpen {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, openProposalsIndexKey(), key)
		} else {
			pipe.Set(ctx, key, data, s.cfg.ResolvedProposalTTL)
			pipe.SRem(ctx, openProposalsIndexKey(), key)
		}
		return nil
	})
	return err
}

func (s *Storage) GetProposal(ctx context.Context, id model.ProposalID) (*model.Proposal, error) {
	data, err := s.client.Get(ctx, proposalKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUnknownProposal
		}
		return nil, err
	}

	var proposal model.Proposal
	if err := json.Unmarshal(data, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (s *Storage) ListOpenProposals(ctx context.Context) ([]*model.Proposal, error) {
	keys, err := s.client.SMembers(ctx, openProposalsIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return []*model.Proposal{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	proposals := make([]*model.Proposal, 0, len(values))
	for i, val := range values {
		if val == nil {
			continue
		}
		var proposal model.Proposal
		if err := json.Unmarshal([]byte(val.(string)), &proposal); err != nil {
			// A corrupt record must not stall the sweep for everyone else
			s.logger.Error("skipping unreadable open proposal",
				slog.String("key", keys[i]),
				slog.Any("error", err))
			continue
		}
		if proposal.Status != model.ProposalOpen {
			continue
		}
		proposals = append(proposals, &proposal)
	}

	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.Before(proposals[j].CreatedAt)
	})
	return proposals, nil
}

// Match operations

func (s *Storage) CommitMatch(ctx context.Context, proposal *model.Proposal, match *model.Match) error {
	proposalData, err := json.Marshal(proposal)
	if err != nil {
		return err
	}
	matchData, err := json.Marshal(match)
	if err != nil {
		return err
	}

	pKey := proposalKey(proposal.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKey(match.ID), matchData, s.cfg.MatchTTL)
		pipe.Set(ctx, pKey, proposalData, s.cfg.ResolvedProposalTTL)
		pipe.SRem(ctx, openProposalsIndexKey(), pKey)
		pipe.ZAdd(ctx, matchIndexKey(), redis.Z{
			Score:  float64(match.CommittedAt.UnixMilli()),
			Member: string(match.ID),
		})
		pipe.SAdd(ctx, outboxKey(), string(match.ID))
		if s.cfg.MatchTTL > 0 {
			// Index entries outlive their match records otherwise
			cutoff := match.CommittedAt.Add(-s.cfg.MatchTTL).UnixMilli()
			pipe.ZRemRangeByScore(ctx, matchIndexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10))
		}
		return nil
	})
	return err
}

func (s *Storage) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	data, err := s.client.Get(ctx, matchKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrMatchNotFound
		}
		return nil, err
	}

	var match model.Match
	if err := json.Unmarshal(data, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *Storage) ListMatchesSince(ctx context.Context, since time.Time, limit int) ([]*model.Match, error) {
	// Scores are milliseconds; the exact bound is applied after decoding
	ids, err := s.client.ZRangeByScore(ctx, matchIndexKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Match{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = matchKey(model.MatchID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	matches := make([]*model.Match, 0, len(values))
	for i, val := range values {
		if val == nil {
			continue // Expired
		}
		var match model.Match
		if err := json.Unmarshal([]byte(val.(string)), &match); err != nil {
			s.logger.Error("skipping unreadable match",
				slog.String("key", keys[i]),
				slog.Any("error", err))
			continue
		}
		if match.CommittedAt.Before(since) {
			continue
		}
		matches = append(matches, &match)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CommittedAt.Equal(matches[j].CommittedAt) {
			return matches[i].CommittedAt.Before(matches[j].CommittedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Delivery outbox operations

func (s *Storage) ListUndeliveredMatches(ctx context.Context) ([]model.MatchID, error) {
	members, err := s.client.SMembers(ctx, outboxKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	ids := make([]model.MatchID, len(members))
	for i, m := range members {
		ids[i] = model.MatchID(m)
	}
	return ids, nil
}

func (s *Storage) AckMatchDelivery(ctx context.Context, id model.MatchID, sink string) error {
	return s.client.SAdd(ctx, outboxAcksKey(id), sink).Err()
}

func (s *Storage) MatchDeliveryAcks(ctx context.Context, id model.MatchID) ([]string, error) {
	acks, err := s.client.SMembers(ctx, outboxAcksKey(id)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(acks)
	return acks, nil
}

func (s *Storage) CompleteMatchDelivery(ctx context.Context, id model.MatchID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, outboxKey(), string(id))
		pipe.Del(ctx, outboxAcksKey(id))
		return nil
	})
	return err
}
