package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ScopeType partitions score aggregates.
type ScopeType string

const (
	ScopeGlobal ScopeType = "global"
	ScopeEvent  ScopeType = "event"
	ScopePhase  ScopeType = "phase"
)

// ScoreEvent is one row of the append-only scoring ledger. Two
// uniqueness constraints make awarding idempotent: a user can earn a
// given (activity, reference) pair once, and an idempotency key can be
// spent once.
type ScoreEvent struct {
	ID             int64             `json:"id" gorm:"primaryKey"`
	UserID         int64             `json:"user_id" gorm:"not null;uniqueIndex:ux_score_events_ref,priority:1;uniqueIndex:ux_score_events_key,priority:1;index:ix_score_events_user_created,priority:1"`
	ActivityType   ActivityType      `json:"activity_type" gorm:"type:text;not null;uniqueIndex:ux_score_events_ref,priority:2"`
	Points         int64             `json:"points" gorm:"not null"`
	ReferenceType  string            `json:"reference_type" gorm:"type:text;not null;uniqueIndex:ux_score_events_ref,priority:3"`
	ReferenceID    string            `json:"reference_id" gorm:"type:text;not null;uniqueIndex:ux_score_events_ref,priority:4"`
	EventID        string            `json:"event_id,omitempty" gorm:"type:text"`
	ChapterID      string            `json:"chapter_id,omitempty" gorm:"type:text"`
	CardIndex      *int              `json:"card_index,omitempty"`
	Phase          string            `json:"phase,omitempty" gorm:"type:text"`
	IdempotencyKey string            `json:"idempotency_key" gorm:"type:text;not null;uniqueIndex:ux_score_events_key,priority:2"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;index:ix_score_events_user_created,priority:2"`
}

func (ScoreEvent) TableName() string { return "score_events" }

// UserScoreAggregate is the derived per-scope running total. It is
// only ever written through atomic increments; the ledger is the
// source of truth.
type UserScoreAggregate struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	UserID     int64     `json:"user_id" gorm:"not null;uniqueIndex:ux_aggregates_scope,priority:1"`
	ScopeType  ScopeType `json:"scope_type" gorm:"type:text;not null;uniqueIndex:ux_aggregates_scope,priority:2"`
	ScopeID    string    `json:"scope_id" gorm:"type:text;not null;default:'';uniqueIndex:ux_aggregates_scope,priority:3"`
	TotalScore int64     `json:"total_score" gorm:"not null;default:0"`
	Level      int       `json:"level" gorm:"not null;default:1"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null"`
}

func (UserScoreAggregate) TableName() string { return "user_score_aggregates" }
