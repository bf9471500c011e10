package domain

import (
	"context"
	"errors"
	"time"

	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

// Failure codes reported to scanning clients. Which one fires is part
// of the contract: clients show different guidance for a damaged code
// than for a reused one.
const (
	CodeInvalidFormat  = "INVALID_FORMAT"
	CodeSignatureFault = "SIGNATURE_FAILED"
	CodeChecksumFault  = "CHECKSUM_FAILED"
	CodeReplayDetected = "REPLAY_DETECTED"
	CodeEventInvalid   = "EVENT_INVALID"
	CodeStorageError   = "STORAGE_ERROR"
)

// CollectionRecord marks one node as collected by one user. The
// unique index is what makes re-scanning a no-op.
type CollectionRecord struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	UserID      int64     `json:"user_id" gorm:"not null;uniqueIndex:ux_collections_user_node,priority:1"`
	NodeKey     string    `json:"node_key" gorm:"type:text;not null;uniqueIndex:ux_collections_user_node,priority:2"`
	EventCode   string    `json:"event_code" gorm:"type:text;not null"`
	ChapterID   string    `json:"chapter_id" gorm:"type:text;not null"`
	SequenceID  string    `json:"sequence_id" gorm:"type:text;not null"`
	CollectedAt time.Time `json:"collected_at" gorm:"not null"`
}

func (CollectionRecord) TableName() string { return "collection_records" }

type Service interface {
	// Validate runs the scan pipeline: decode, verify integrity, check
	// replay, validate the event, record the collection and award
	// points. Validation failures come back inside the result, not as
	// an error; errors are reserved for storage trouble.
	Validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error)

	// Mint signs a fresh proof token for a node. Operator tooling uses
	// it to produce QR payloads.
	Mint(ctx context.Context, req MintRequest) (*MintResponse, error)
}

type ValidateRequest struct {
	UserID          int64  `json:"-"`
	Token           string `json:"token"`
	ExpectedEventID string `json:"event_id,omitempty"`
}

type ValidationResult struct {
	Valid            bool   `json:"valid"`
	Code             string `json:"code,omitempty"`
	AlreadyCollected bool   `json:"already_collected"`

	EventCode  string `json:"event_code,omitempty"`
	ChapterID  string `json:"chapter_id,omitempty"`
	SequenceID string `json:"sequence_id,omitempty"`

	PointsAwarded   int64                  `json:"points_awarded"`
	TotalScore      int64                  `json:"total_score,omitempty"`
	Level           int                    `json:"level,omitempty"`
	NewAchievements []scoringdomain.Unlock `json:"new_achievements,omitempty"`
}

type MintRequest struct {
	EventCode    string `json:"-"`
	ChapterID    string `json:"chapter_id"`
	SequenceID   string `json:"sequence_id"`
	WithChecksum bool   `json:"with_checksum"`
}

type MintResponse struct {
	Token string `json:"token"`
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrRateLimited  = errors.New("rate_limited")
	ErrInvalidInput = errors.New("invalid_input")
)
