package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	GetByCode(ctx context.Context, code string) (*Response, error)
	SetActive(ctx context.Context, code string, active bool) (*Response, error)
	SetPhase(ctx context.Context, code, phase string) (*Response, error)

	// ValidateScan checks that a token's event reference names a known,
	// currently active event and, when expectedCode is non-empty, that
	// it matches the event the client believes it is scanning.
	ValidateScan(ctx context.Context, tokenEventCode, expectedCode string) (*Event, error)
}

type CreateRequest struct {
	Code     string     `json:"code"`
	Name     string     `json:"name"`
	Phase    string     `json:"phase"`
	Active   *bool      `json:"active"`
	Chapters int        `json:"chapters"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

type ListRequest struct {
	Active  *bool
	SortBy  string
	OrderBy string
}

type Response struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Phase     string     `json:"phase,omitempty"`
	Active    bool       `json:"active"`
	Chapters  int        `json:"chapters"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

var (
	ErrInvalidCode   = errors.New("invalid_code")
	ErrInvalidName   = errors.New("invalid_name")
	ErrCodeTaken     = errors.New("code_taken")
	ErrNotFound      = errors.New("event_not_found")
	ErrEventInactive = errors.New("event_inactive")
	ErrEventMismatch = errors.New("event_mismatch")
)
