// Package archive keeps a durable Postgres record of every committed match for
// downstream settlement. Rows are keyed by match id so redelivered events are
// absorbed.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mcoot/fairmatch/internal/events"
	"github.com/mcoot/fairmatch/internal/model"
)

// MatchRecord is one archived match
type MatchRecord struct {
	MatchID     string     `gorm:"primaryKey;type:varchar(64)" json:"match_id"`
	ProposalID  string     `gorm:"index;type:varchar(64);not null" json:"proposal_id"`
	PlayerA     string     `gorm:"index;type:varchar(128);not null" json:"player_a"`
	PlayerB     string     `gorm:"index;type:varchar(128);not null" json:"player_b"`
	CommittedAt time.Time  `gorm:"not null" json:"committed_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName pins the table name
func (MatchRecord) TableName() string {
	return "match_records"
}

// Archive is an events.Sink writing match records
type Archive struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Ensure Archive implements events.Sink
var _ events.Sink = (*Archive)(nil)

// Open connects to Postgres and migrates the match table
func Open(dsn string, logger *slog.Logger) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	if err := db.AutoMigrate(&MatchRecord{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an existing gorm connection
func New(db *gorm.DB, logger *slog.Logger) *Archive {
	return &Archive{
		db:     db,
		logger: logger.With(slog.String("component", "archive")),
	}
}

// Name identifies the sink in logs
func (a *Archive) Name() string {
	return "archive"
}

// Handle records committed matches and marks released ones. Other events are
// ignored.
func (a *Archive) Handle(ctx context.Context, event model.Event) error {
	payload, ok := event.Payload.(model.MatchPayload)
	if !ok {
		return nil
	}

	switch event.Type {
	case model.EventMatchCommitted:
		record := recordFromMatch(payload.Match)
		err := a.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&record).Error
		if err != nil {
			return fmt.Errorf("archive: insert %s: %w", record.MatchID, err)
		}
		a.logger.Debug("match archived", slog.String("match_id", record.MatchID))

	case model.EventMatchReleased:
		err := a.db.WithContext(ctx).
			Model(&MatchRecord{}).
			Where("match_id = ? AND released_at IS NULL", string(payload.Match.ID)).
			Update("released_at", event.Timestamp).Error
		if err != nil {
			return fmt.Errorf("archive: release %s: %w", payload.Match.ID, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordFromMatch(m model.Match) MatchRecord {
	return MatchRecord{
		MatchID:     string(m.ID),
		ProposalID:  string(m.ProposalID),
		PlayerA:     string(m.Players[0]),
		PlayerB:     string(m.Players[1]),
		CommittedAt: m.CommittedAt,
	}
}
