package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Award appends one activity to the ledger and updates the derived
	// aggregates. Retrying with the same reference or idempotency key
	// is a no-op reporting PointsAwarded == 0.
	Award(ctx context.Context, req AwardRequest) (*AwardResult, error)

	// AwardAsync awards in the background of the calling request:
	// failures are logged, never returned, so a scoring problem cannot
	// reject the user action that triggered it.
	AwardAsync(ctx context.Context, req AwardRequest)

	GetScore(ctx context.Context, req ScoreRequest) (*ScoreResponse, error)
	CalculateStreak(ctx context.Context, userID int64, activityType ActivityType) (int, error)
}

// Evaluator is implemented by the achievement subsystem. Award calls
// it after its transaction commits; implementations must be
// re-runnable because a crash between commit and evaluation leaves
// unlocks to be picked up later.
type Evaluator interface {
	EvaluateOnAward(ctx context.Context, userID int64, ev *ScoreEvent) ([]Unlock, error)
}

// Unlock reports one newly granted achievement.
type Unlock struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	PointsBonus int64  `json:"points_bonus"`
}

type AwardRequest struct {
	UserID         int64          `json:"-"`
	ActivityType   string         `json:"activity_type"`
	ReferenceType  string         `json:"reference_type"`
	ReferenceID    string         `json:"reference_id"`
	EventID        string         `json:"event_id,omitempty"`
	ChapterID      string         `json:"chapter_id,omitempty"`
	CardIndex      *int           `json:"card_index,omitempty"`
	Phase          string         `json:"phase,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// Points overrides the configured point table. Only the
	// achievement bonus path sets it.
	Points *int64 `json:"-"`
}

type AwardResult struct {
	PointsAwarded   int64    `json:"points_awarded"`
	AlreadyAwarded  bool     `json:"already_awarded"`
	CapReached      bool     `json:"cap_reached,omitempty"`
	TotalScore      int64    `json:"total_score"`
	Level           int      `json:"level"`
	NewAchievements []Unlock `json:"new_achievements,omitempty"`
}

type ScoreRequest struct {
	UserID    int64
	ScopeType ScopeType
	ScopeID   string
}

type ScoreResponse struct {
	UserID     string    `json:"user_id"`
	ScopeType  ScopeType `json:"scope_type"`
	ScopeID    string    `json:"scope_id,omitempty"`
	TotalScore int64     `json:"total_score"`
	Level      int       `json:"level"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidReference = errors.New("invalid_reference")
	ErrInvalidScope     = errors.New("invalid_scope")
)
