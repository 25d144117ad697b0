package factory

import (
	"time"

	"github.com/mcoot/fairmatch/internal/api/sse"
	"github.com/mcoot/fairmatch/internal/dependencies/mocks"
	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/storage/memory"
	"github.com/mcoot/fairmatch/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	IDs        *mocks.SequentialIDs
	Comparator *mocks.PlainComparator
	Recorder   *mocks.EventRecorder
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Ratings are plain decimal strings (see mocks.PlainRating).
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(DefaultConfig())
}

// NewTestAppWithConfig is NewTestApp with component configuration overrides
func NewTestAppWithConfig(cfg Config) *TestApp {
	return NewTestAppWithSinks(cfg)
}

// NewTestAppWithSinks is NewTestAppWithConfig with extra event sinks after the
// SSE broadcaster and the recorder
func NewTestAppWithSinks(cfg Config, extra ...events.Sink) *TestApp {
	logger := testutil.NopLogger()
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	idGen := mocks.NewSequentialIDs()
	comparator := mocks.NewPlainComparator()
	recorder := mocks.NewEventRecorder()
	hubManager := sse.NewHubManager(logger)
	sinks := append([]events.Sink{sse.NewBroadcaster(hubManager, logger), recorder}, extra...)
	bus := events.NewBus(logger, store, sinks...)

	app := newWithDependencies(store, mockClock, idGen, comparator, bus, hubManager, cfg, logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		IDs:        idGen,
		Comparator: comparator,
		Recorder:   recorder,
	}
}
