package events

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/mcoot/fairmatch/internal/metrics"
	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/storage"
)

// Publisher is what the matchmaking services emit events through.
// Publishing never fails from the caller's point of view.
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Sink is one downstream consumer of events (SSE, NATS, the match archive)
type Sink interface {
	Name() string
	Handle(ctx context.Context, event model.Event) error
}

// Bus fans each event out to every sink in order, logging sink failures.
//
// With an outbox, committed matches are delivered at least once: a match
// stays in the outbox until every sink has acknowledged it, and Redeliver
// retries the sinks that have not. Consumers deduplicate by match id.
// Other events are best effort.
type Bus struct {
	sinks  []Sink
	outbox storage.Outbox
	logger *slog.Logger
}

// Ensure Bus implements Publisher
var _ Publisher = (*Bus)(nil)

// NewBus creates a Bus over the given sinks. outbox may be nil, in which case
// every event is best effort.
func NewBus(logger *slog.Logger, outbox storage.Outbox, sinks ...Sink) *Bus {
	return &Bus{
		sinks:  sinks,
		outbox: outbox,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Publish delivers event to every sink
func (b *Bus) Publish(ctx context.Context, event model.Event) {
	if !b.tracked(event) {
		for _, sink := range b.sinks {
			b.handle(ctx, sink, event)
		}
		return
	}

	var delivered []string
	for _, sink := range b.sinks {
		if b.handle(ctx, sink, event) {
			delivered = append(delivered, sink.Name())
		}
	}
	if err := b.settle(ctx, event.MatchID, delivered, len(delivered) == len(b.sinks)); err != nil {
		b.logger.Error("failed to record match delivery",
			slog.String("match_id", string(event.MatchID)),
			slog.Any("error", err))
	}
}

// Redeliver retries every match in the outbox committed before cutoff against
// the sinks that have not acknowledged it yet. Newer matches are left to
// their in-flight Publish. It returns how many matches were fully delivered.
func (b *Bus) Redeliver(ctx context.Context, cutoff time.Time) (int, error) {
	if b.outbox == nil {
		return 0, nil
	}

	ids, err := b.outbox.ListUndeliveredMatches(ctx)
	if err != nil {
		return 0, err
	}
	metrics.UndeliveredMatches.Set(float64(len(ids)))

	completed := 0
	var errs []error
	for _, id := range ids {
		done, err := b.redeliver(ctx, id, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			completed++
		}
	}
	if completed > 0 {
		b.logger.Info("matches redelivered", slog.Int("count", completed))
	}
	return completed, errors.Join(errs...)
}

func (b *Bus) redeliver(ctx context.Context, id model.MatchID, cutoff time.Time) (bool, error) {
	match, err := b.outbox.GetMatch(ctx, id)
	if errors.Is(err, model.ErrMatchNotFound) {
		b.logger.Error("undelivered match expired from storage",
			slog.String("match_id", string(id)))
		return false, b.outbox.CompleteMatchDelivery(ctx, id)
	}
	if err != nil {
		return false, err
	}
	if !match.CommittedAt.Before(cutoff) {
		return false, nil
	}

	acked, err := b.outbox.MatchDeliveryAcks(ctx, id)
	if err != nil {
		return false, err
	}

	event := model.MatchCommittedEvent(*match)
	var delivered []string
	complete := true
	for _, sink := range b.sinks {
		if slices.Contains(acked, sink.Name()) {
			continue
		}
		if b.handle(ctx, sink, event) {
			delivered = append(delivered, sink.Name())
		} else {
			complete = false
		}
	}
	return complete, b.settle(ctx, id, delivered, complete)
}

// settle records which sinks took the match, or drops it from the outbox
// once all of them have
func (b *Bus) settle(ctx context.Context, id model.MatchID, delivered []string, complete bool) error {
	if complete {
		return b.outbox.CompleteMatchDelivery(ctx, id)
	}
	var errs []error
	for _, name := range delivered {
		errs = append(errs, b.outbox.AckMatchDelivery(ctx, id, name))
	}
	return errors.Join(errs...)
}

func (b *Bus) handle(ctx context.Context, sink Sink, event model.Event) bool {
	if err := sink.Handle(ctx, event); err != nil {
		metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
		b.logger.Error("event sink failed",
			slog.String("sink", sink.Name()),
			slog.String("event", string(event.Type)),
			slog.Any("error", err))
		return false
	}
	return true
}

func (b *Bus) tracked(event model.Event) bool {
	return b.outbox != nil && event.Type == model.EventMatchCommitted && event.MatchID != ""
}

// Nop discards every event
type Nop struct{}

// Publish does nothing
func (Nop) Publish(ctx context.Context, event model.Event) {}
