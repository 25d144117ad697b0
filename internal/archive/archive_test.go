package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/fairmatch/internal/model"
	"github.com/mcoot/fairmatch/internal/testutil"
)

func TestRecordFromMatch(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	record := recordFromMatch(model.Match{
		ID:          "m1",
		ProposalID:  "p1",
		Players:     [2]model.PlayerID{"alice", "bob"},
		CommittedAt: now,
	})

	assert.Equal(t, "m1", record.MatchID)
	assert.Equal(t, "p1", record.ProposalID)
	assert.Equal(t, "alice", record.PlayerA)
	assert.Equal(t, "bob", record.PlayerB)
	assert.Equal(t, now, record.CommittedAt)
	assert.Nil(t, record.ReleasedAt)
}

func TestHandleIgnoresNonMatchEvents(t *testing.T) {
	// No database is needed for events the archive does not store
	a := New(nil, testutil.NopLogger())

	err := a.Handle(context.Background(), model.Event{
		Type:    model.EventProposalCreated,
		Payload: model.ProposalPayload{},
	})
	require.NoError(t, err)
}
