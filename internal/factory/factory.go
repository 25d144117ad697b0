package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/fairmatch/internal/api"
	"github.com/mcoot/fairmatch/internal/api/sse"
	"github.com/mcoot/fairmatch/internal/archive"
	"github.com/mcoot/fairmatch/internal/dependencies/clock"
	"github.com/mcoot/fairmatch/internal/dependencies/ids"
	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/messaging"
	"github.com/mcoot/fairmatch/internal/rating"
	"github.com/mcoot/fairmatch/internal/services/auth"
	"github.com/mcoot/fairmatch/internal/services/matcher"
	"github.com/mcoot/fairmatch/internal/services/matchmaking"
	"github.com/mcoot/fairmatch/internal/services/proposal"
	"github.com/mcoot/fairmatch/internal/services/queue"
	"github.com/mcoot/fairmatch/internal/services/registry"
	"github.com/mcoot/fairmatch/internal/services/scheduler"
	"github.com/mcoot/fairmatch/internal/storage"
	"github.com/mcoot/fairmatch/internal/storage/memory"
	redisstorage "github.com/mcoot/fairmatch/internal/storage/redis"
)

// hubCleanupInterval is how often SSE hubs without subscribers are dropped
const hubCleanupInterval = 5 * time.Minute

// defaultRedeliveryInterval is how often undelivered matches are retried
const defaultRedeliveryInterval = 10 * time.Second

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock      clock.Clock
	IDs        ids.Generator
	Comparator rating.Comparator

	// Services
	Registry    *registry.Registry
	Queue       *queue.Service
	Coordinator *proposal.Coordinator
	Matcher     *matcher.Matcher
	Matchmaking *matchmaking.Service
	AuthService *auth.Service
	HubManager  *sse.HubManager
	Events      *events.Bus

	redeliveryInterval time.Duration
	logger             *slog.Logger
	closers            []func() error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger

	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config

	// RatingSecret keys the rating oracle. Required.
	RatingSecret []byte

	Queue    queue.Config
	Proposal proposal.Config
	Matcher  matcher.Config
	Auth     auth.Config

	// NATSConfig enables the NATS event sink when set
	NATSConfig *messaging.Config
	// ArchiveDSN enables the Postgres match archive when set
	ArchiveDSN string

	// RedeliveryInterval is how often committed matches that some event sink
	// has not taken are retried. Matches younger than one interval are left
	// to their first delivery.
	RedeliveryInterval time.Duration
}

// DefaultConfig returns a memory-backed configuration with every component
// at its defaults. RatingSecret must still be set.
func DefaultConfig() Config {
	return Config{
		StorageType: StorageTypeMemory,
		Queue:       queue.DefaultConfig(),
		Proposal:    proposal.DefaultConfig(),
		Matcher:     matcher.DefaultConfig(),
		Auth:        auth.DefaultConfig(),

		RedeliveryInterval: defaultRedeliveryInterval,
	}
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	sealer, err := rating.NewSealer(cfg.RatingSecret)
	if err != nil {
		return nil, err
	}

	var closers []func() error

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, redisStore.Close)
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	hubManager := sse.NewHubManager(logger)
	sinks := []events.Sink{sse.NewBroadcaster(hubManager, logger)}

	if cfg.NATSConfig != nil {
		nc, err := messaging.Connect(*cfg.NATSConfig, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, err
		}
		closers = append(closers, func() error { return nc.Drain() })
		sinks = append(sinks, messaging.NewSink(nc))
	}

	if cfg.ArchiveDSN != "" {
		arch, err := archive.Open(cfg.ArchiveDSN, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, err
		}
		closers = append(closers, arch.Close)
		sinks = append(sinks, arch)
	}

	app := newWithDependencies(
		store,
		clock.New(),
		ids.New(),
		rating.NewAEADComparator(sealer),
		events.NewBus(logger, store, sinks...),
		hubManager,
		cfg,
		logger,
	)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	idGen ids.Generator,
	comparator rating.Comparator,
	bus *events.Bus,
	hubManager *sse.HubManager,
	cfg Config,
	logger *slog.Logger,
) *App {
	reg := registry.New(store, clk, logger)
	queueService := queue.New(store, reg, clk, bus, logger, cfg.Queue)
	coordinator := proposal.New(store, reg, queueService, clk, idGen, bus, logger, cfg.Proposal)
	m := matcher.New(queueService, coordinator, comparator, clk, logger, cfg.Matcher)
	mm := matchmaking.New(store, reg, queueService, coordinator, clk, bus, logger)
	authService := auth.New(reg, clk, logger, cfg.Auth)

	redeliveryInterval := cfg.RedeliveryInterval
	if redeliveryInterval <= 0 {
		redeliveryInterval = defaultRedeliveryInterval
	}

	return &App{
		Storage:     store,
		Clock:       clk,
		IDs:         idGen,
		Comparator:  comparator,
		Registry:    reg,
		Queue:       queueService,
		Coordinator: coordinator,
		Matcher:     m,
		Matchmaking: mm,
		AuthService: authService,
		HubManager:  hubManager,
		Events:      bus,

		redeliveryInterval: redeliveryInterval,
		logger:             logger,
	}
}

// Router builds the HTTP API for the app
func (a *App) Router(logger *slog.Logger) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      logger,
		AuthService: a.AuthService,
		Matchmaking: a.Matchmaking,
		HubManager:  a.HubManager,
	})
}

// Scheduler builds the background job runner for the app. The job cadences
// come from the matcher and coordinator configuration.
func (a *App) Scheduler(logger *slog.Logger) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(a.Matcher, a.Coordinator, a.AuthService, logger, scheduler.Config{
		MatchInterval: a.Matcher.Config().Interval,
		SweepInterval: a.Coordinator.Config().SweepInterval,
	})
	if err != nil {
		return nil, err
	}
	if err := sched.AddJob("sse-hub-cleanup", hubCleanupInterval, a.HubManager.CleanupEmptyHubs); err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	if err := sched.AddJob("match-redelivery", a.redeliveryInterval, a.RedeliverMatches); err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	return sched, nil
}

// RedeliverMatches retries committed matches that an event sink has not
// acknowledged yet
func (a *App) RedeliverMatches() {
	ctx, cancel := context.WithTimeout(context.Background(), a.redeliveryInterval)
	defer cancel()

	cutoff := a.Clock.Now().Add(-a.redeliveryInterval)
	if _, err := a.Events.Redeliver(ctx, cutoff); err != nil {
		a.logger.Error("match redelivery failed", slog.Any("error", err))
	}
}

// Close shuts down the SSE hubs and releases external connections
func (a *App) Close(logger *slog.Logger) {
	a.HubManager.Close()
	closeAll(a.closers, logger)
}

func closeAll(closers []func() error, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("close failed", slog.Any("error", err))
		}
	}
}
