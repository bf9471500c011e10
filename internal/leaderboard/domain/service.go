package domain

import (
	"context"
	"errors"

	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

type Service interface {
	// Top returns the highest-scoring users of a scope. Ties resolve
	// by who reached the board first.
	Top(ctx context.Context, req TopRequest) ([]Entry, error)

	// Position returns the user's 1-based rank within a scope: one
	// more than the number of users with a strictly greater total.
	Position(ctx context.Context, req PositionRequest) (*PositionResponse, error)
}

type TopRequest struct {
	ScopeType scoringdomain.ScopeType
	ScopeID   string
	Limit     int
}

type PositionRequest struct {
	UserID    int64
	ScopeType scoringdomain.ScopeType
	ScopeID   string
}

type Entry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	TotalScore int64  `json:"total_score"`
	Level      int    `json:"level"`
}

type PositionResponse struct {
	Rank       int64 `json:"rank"`
	TotalScore int64 `json:"total_score"`
	Level      int   `json:"level"`
}

var (
	ErrInvalidScope = errors.New("invalid_scope")
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidLimit = errors.New("invalid_limit")
)
