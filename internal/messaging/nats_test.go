package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/model"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	err  error
	msgs []published
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

type SinkSuite struct {
	suite.Suite
	conn *fakeConn
	sink *Sink
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupTest() {
	s.conn = &fakeConn{}
	s.sink = NewSink(s.conn)
}

func (s *SinkSuite) TestPublishesMatchOnTypeSubject() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	match := model.Match{ID: "m1", ProposalID: "p1", Players: [2]model.PlayerID{"a", "b"}, CommittedAt: now}

	err := s.sink.Handle(context.Background(), model.Event{
		Type:      model.EventMatchCommitted,
		Timestamp: now,
		PlayerIDs: []model.PlayerID{"a", "b"},
		MatchID:   "m1",
		Payload:   model.MatchPayload{Match: match},
	})
	s.Require().NoError(err)
	s.Require().Len(s.conn.msgs, 1)
	s.Equal("fairmatch.events.match_committed", s.conn.msgs[0].subject)

	var env events.Envelope
	s.Require().NoError(json.Unmarshal(s.conn.msgs[0].data, &env))
	s.Require().NotNil(env.Match)
	s.Equal(model.MatchID("m1"), env.Match.ID)
	s.Equal(match.Players, env.Match.Players)
}

func (s *SinkSuite) TestPublishErrorIsReturned() {
	s.conn.err = errors.New("nats down")

	err := s.sink.Handle(context.Background(), model.Event{Type: model.EventPlayerQueued})
	s.Error(err)
}
