package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// TTLs for records that no longer take part in matchmaking. Sessions and
	// the queue never expire.
	ResolvedProposalTTL time.Duration
	MatchTTL            time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:                 "redis://localhost:6379",
		PoolSize:            10,
		MinIdleConns:        2,
		ResolvedProposalTTL: time.Hour,
		MatchTTL:            7 * 24 * time.Hour,
	}
}
