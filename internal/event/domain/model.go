package domain

import (
	"time"
)

// Event is a catalog entry for a live experience fans can check in
// to. Code is the public identifier carried inside proof tokens;
// Phase names the currently running segment of the event and scopes
// phase-level score aggregates.
type Event struct {
	ID        int64      `json:"id" gorm:"primaryKey"`
	Code      string     `json:"code" gorm:"type:text;not null;uniqueIndex:ux_events_code"`
	Name      string     `json:"name" gorm:"type:text;not null"`
	Phase     string     `json:"phase" gorm:"type:text"`
	// No gorm default here: a default tag makes gorm drop the column
	// from INSERTs when the value is false, so deactivated events
	// could never be created.
	Active    bool       `json:"active" gorm:"not null"`
	Chapters  int        `json:"chapters" gorm:"not null;default:0"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"not null"`
}

func (Event) TableName() string { return "events" }
