// Package messaging publishes matchmaking events to NATS so that other
// services (game servers, settlement) can react to committed matches.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/model"
)

// SubjectPrefix is prepended to the event type to form the subject,
// e.g. fairmatch.events.match_committed
const SubjectPrefix = "fairmatch.events"

// Config holds NATS connection settings
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "fairmatch",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Conn is the subset of *nats.Conn the sink needs
type Conn interface {
	Publish(subject string, data []byte) error
}

// Sink publishes each event to its type's subject
type Sink struct {
	conn Conn
}

// Ensure Sink implements events.Sink
var _ events.Sink = (*Sink)(nil)

// NewSink creates a sink over an existing connection
func NewSink(conn Conn) *Sink {
	return &Sink{conn: conn}
}

// Connect dials NATS with the given config
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	logger = logger.With(slog.String("component", "nats"))
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info("nats connected", slog.String("url", nc.ConnectedUrl()))
	return nc, nil
}

// Subject returns the subject an event type is published on
func Subject(t model.EventType) string {
	return SubjectPrefix + "." + string(t)
}

// Name identifies the sink in logs
func (s *Sink) Name() string {
	return "nats"
}

// Handle publishes the event
func (s *Sink) Handle(ctx context.Context, event model.Event) error {
	data, err := events.Encode(event)
	if err != nil {
		return fmt.Errorf("nats: marshal %s: %w", event.Type, err)
	}
	if err := s.conn.Publish(Subject(event.Type), data); err != nil {
		return fmt.Errorf("nats: publish %s: %w", event.Type, err)
	}
	return nil
}
