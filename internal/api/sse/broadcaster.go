package sse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/model"
)

// ErrHubBusy is returned when a committed match could not be queued for the
// matches stream; the outbox retries it
var ErrHubBusy = errors.New("sse matches hub buffer full")

// Broadcaster is an events.Sink that forwards events to SSE subscribers.
// Every event goes to the topic of each player it concerns; committed matches
// also go to MatchesTopic, with their commit time as the SSE id.
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// Ensure Broadcaster implements events.Sink
var _ events.Sink = (*Broadcaster)(nil)

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Name identifies the sink in logs
func (b *Broadcaster) Name() string {
	return "sse"
}

// Handle broadcasts the event to every interested hub
func (b *Broadcaster) Handle(ctx context.Context, event model.Event) error {
	data, err := events.Encode(event)
	if err != nil {
		return err
	}

	for _, id := range event.PlayerIDs {
		if hub := b.hubManager.GetHub(PlayerTopic(string(id))); hub != nil {
			hub.BroadcastEvent(string(event.Type), string(data))
		}
	}

	if event.Type == model.EventMatchCommitted {
		hub := b.hubManager.GetHub(MatchesTopic)
		if hub != nil && !hub.Broadcast(FormatMessage(MatchEventID(event.Timestamp), string(event.Type), string(data))) {
			return ErrHubBusy
		}
	}
	return nil
}

// MatchEventID is the SSE id of a committed match on MatchesTopic: its commit
// time. A reconnecting client sends it back as Last-Event-ID.
func MatchEventID(committedAt time.Time) string {
	return committedAt.UTC().Format(time.RFC3339Nano)
}

// ParseMatchEventID reverses MatchEventID
func ParseMatchEventID(id string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, id)
}

// MatchMessage formats a stored match exactly as it was streamed live
func MatchMessage(m model.Match) ([]byte, error) {
	event := model.MatchCommittedEvent(m)
	data, err := events.Encode(event)
	if err != nil {
		return nil, err
	}
	return FormatMessage(MatchEventID(m.CommittedAt), string(event.Type), string(data)), nil
}
