package domain

import (
	"time"

	"gorm.io/datatypes"

	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

// CriteriaType selects how a definition's threshold is interpreted.
type CriteriaType string

const (
	// CriteriaActivityCount unlocks after N ledger entries of
	// ActivityType.
	CriteriaActivityCount CriteriaType = "activity_count"
	// CriteriaScoreThreshold unlocks once the global total reaches N.
	CriteriaScoreThreshold CriteriaType = "score_threshold"
	// CriteriaLevelThreshold unlocks at global level N.
	CriteriaLevelThreshold CriteriaType = "level_threshold"
	// CriteriaStreakDays unlocks at an N-day streak of ActivityType.
	CriteriaStreakDays CriteriaType = "streak_days"
	// CriteriaActivityVariety unlocks after N distinct activity types.
	CriteriaActivityVariety CriteriaType = "activity_variety"
)

func (ct CriteriaType) Valid() bool {
	switch ct {
	case CriteriaActivityCount, CriteriaScoreThreshold, CriteriaLevelThreshold,
		CriteriaStreakDays, CriteriaActivityVariety:
		return true
	}
	return false
}

// Definition describes one unlockable achievement.
type Definition struct {
	ID           int64                      `json:"id" gorm:"primaryKey"`
	Code         string                     `json:"code" gorm:"type:text;not null;uniqueIndex:ux_achievements_code"`
	Name         string                     `json:"name" gorm:"type:text;not null"`
	Description  string                     `json:"description" gorm:"type:text"`
	CriteriaType CriteriaType               `json:"criteria_type" gorm:"type:text;not null"`
	ActivityType scoringdomain.ActivityType `json:"activity_type,omitempty" gorm:"type:text"`
	Threshold    int64                      `json:"threshold" gorm:"not null"`
	PointsBonus  int64                      `json:"points_bonus" gorm:"not null;default:0"`
	// No gorm default: it would drop false values from INSERTs.
	Active       bool                       `json:"active" gorm:"not null"`
	CreatedAt    time.Time                  `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time                  `json:"updated_at" gorm:"not null"`
}

func (Definition) TableName() string { return "achievement_definitions" }

// UserAchievement records one unlock. The unique index carries the
// once-only guarantee; re-evaluation can race itself freely.
type UserAchievement struct {
	ID            int64             `json:"id" gorm:"primaryKey"`
	UserID        int64             `json:"user_id" gorm:"not null;uniqueIndex:ux_user_achievements,priority:1"`
	AchievementID int64             `json:"achievement_id" gorm:"not null;uniqueIndex:ux_user_achievements,priority:2"`
	AwardedAt     time.Time         `json:"awarded_at" gorm:"not null"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
}

func (UserAchievement) TableName() string { return "user_achievements" }
