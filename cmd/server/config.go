package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcoot/fairmatch/internal/api"
	"github.com/mcoot/fairmatch/internal/factory"
	"github.com/mcoot/fairmatch/internal/messaging"
	redisstorage "github.com/mcoot/fairmatch/internal/storage/redis"
)

// loadConfig builds the factory and server configuration from the
// environment. Unset variables keep their defaults.
func loadConfig() (factory.Config, api.ServerConfig, error) {
	cfg := factory.DefaultConfig()
	serverCfg := api.DefaultServerConfig()

	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.StorageType = v
	}
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return cfg, serverCfg, errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	secret := os.Getenv("RATING_SECRET")
	if secret == "" {
		return cfg, serverCfg, errors.New("RATING_SECRET is required")
	}
	cfg.RatingSecret = []byte(secret)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envInt("MATCH_THRESHOLD", &cfg.Matcher.Threshold))
	collect(envDuration("MATCH_INTERVAL", &cfg.Matcher.Interval))
	collect(envDuration("WIDEN_AFTER", &cfg.Matcher.Widening.After))
	collect(envDuration("WIDEN_EVERY", &cfg.Matcher.Widening.Every))
	collect(envInt("WIDEN_STEP", &cfg.Matcher.Widening.Step))
	collect(envInt("WIDEN_MAX", &cfg.Matcher.Widening.Max))
	collect(envDuration("ACCEPT_WINDOW", &cfg.Proposal.AcceptWindow))
	collect(envDuration("SWEEP_INTERVAL", &cfg.Proposal.SweepInterval))
	collect(envBool("PRESERVE_WAIT_TIME", &cfg.Proposal.PreserveWaitTime))
	collect(envInt("QUEUE_CAPACITY", &cfg.Queue.Capacity))
	collect(envDuration("SESSION_DURATION", &cfg.Auth.SessionDuration))
	collect(envDuration("REDELIVERY_INTERVAL", &cfg.RedeliveryInterval))
	collect(envInt("PORT", &serverCfg.Port))

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsCfg := messaging.DefaultConfig()
		natsCfg.URL = natsURL
		cfg.NATSConfig = &natsCfg
	}
	cfg.ArchiveDSN = os.Getenv("DATABASE_URL")

	if cfg.Matcher.Threshold < 0 {
		errs = append(errs, errors.New("MATCH_THRESHOLD must not be negative"))
	}
	if cfg.Queue.Capacity < 0 {
		errs = append(errs, errors.New("QUEUE_CAPACITY must not be negative"))
	}

	return cfg, serverCfg, errors.Join(errs...)
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
