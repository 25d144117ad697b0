// Package metrics provides Prometheus instrumentation for matchmaking. None of
// the series carry rating values; comparator failures are counted, not
// described.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueSize tracks the number of players currently waiting.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fairmatch_queue_size",
		Help: "Current number of players in the matchmaking queue",
	})

	// ProposalsTotal counts proposals by outcome: "created", "committed",
	// "expired" or "cancelled".
	ProposalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fairmatch_proposals_total",
		Help: "Total number of match proposals by outcome",
	}, []string{"outcome"})

	// MatchesTotal counts committed matches.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fairmatch_matches_total",
		Help: "Total number of committed matches",
	})

	// ComparatorDataErrors counts ratings the comparator could not open.
	ComparatorDataErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fairmatch_comparator_data_errors_total",
		Help: "Total number of malformed encrypted ratings seen by the matcher",
	})

	// CycleDuration records how long one matcher scan takes.
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fairmatch_matcher_cycle_duration_seconds",
		Help:    "Duration of one matcher scan cycle in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// QueueWait records how long a player waited before being proposed.
	QueueWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fairmatch_queue_wait_seconds",
		Help:    "Time from enqueue to proposal in seconds",
		Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
	})

	// SinkFailures counts events an event sink failed to handle.
	SinkFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fairmatch_event_sink_failures_total",
		Help: "Total number of events an event sink failed to handle",
	}, []string{"sink"})

	// UndeliveredMatches tracks committed matches not yet taken by every sink.
	UndeliveredMatches = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fairmatch_undelivered_matches",
		Help: "Committed matches awaiting delivery to at least one event sink",
	})
)

// Outcome labels for ProposalsTotal
const (
	OutcomeCreated   = "created"
	OutcomeCommitted = "committed"
	OutcomeExpired   = "expired"
	OutcomeCancelled = "cancelled"
)

func init() {
	prometheus.MustRegister(
		QueueSize,
		ProposalsTotal,
		MatchesTotal,
		ComparatorDataErrors,
		CycleDuration,
		QueueWait,
		SinkFailures,
		UndeliveredMatches,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
