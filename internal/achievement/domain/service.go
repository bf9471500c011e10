package domain

import (
	"context"
	"errors"
	"time"

	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

// Service evaluates and reports achievements. It also implements
// scoringdomain.Evaluator so awards trigger evaluation without the
// scoring package importing this one.
type Service interface {
	scoringdomain.Evaluator

	// Reconcile re-evaluates every active definition for the user and
	// re-applies any bonus whose unlock committed but whose ledger
	// entry is missing. Safe to run any number of times; it returns
	// only the unlocks this run granted.
	Reconcile(ctx context.Context, userID int64) ([]scoringdomain.Unlock, error)

	ListDefinitions(ctx context.Context) ([]DefinitionResponse, error)
	ListForUser(ctx context.Context, userID int64) (*UserAchievementsResponse, error)
}

type DefinitionResponse struct {
	Code         string                     `json:"code"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description,omitempty"`
	CriteriaType CriteriaType               `json:"criteria_type"`
	ActivityType scoringdomain.ActivityType `json:"activity_type,omitempty"`
	Threshold    int64                      `json:"threshold"`
	PointsBonus  int64                      `json:"points_bonus"`
}

type UnlockedResponse struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	AwardedAt time.Time `json:"awarded_at"`
}

type UserAchievementsResponse struct {
	Unlocked  []UnlockedResponse   `json:"unlocked"`
	Remaining []DefinitionResponse `json:"remaining"`
}

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidCriteria = errors.New("invalid_criteria")
)
