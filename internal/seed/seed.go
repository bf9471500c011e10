package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	achievementdomain "github.com/fanpulse/fanpulse/internal/achievement/domain"
	eventdomain "github.com/fanpulse/fanpulse/internal/event/domain"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
)

// LockTTL bounds the startup seed lock. Seeding finishes in well
// under a second; the TTL only matters when a replica dies holding
// the lock.
const LockTTL = 30 * time.Second

type definitionSeed struct {
	name         string
	description  string
	criteriaType achievementdomain.CriteriaType
	activityType scoringdomain.ActivityType
	threshold    int64
	pointsBonus  int64
}

var defaultDefinitions = []definitionSeed{
	{
		name:         "First Steps",
		description:  "Check in at your first event node.",
		criteriaType: achievementdomain.CriteriaActivityCount,
		activityType: scoringdomain.ActivityCheckin,
		threshold:    1,
		pointsBonus:  10,
	},
	{
		name:         "Explorer",
		description:  "Check in at ten event nodes.",
		criteriaType: achievementdomain.CriteriaActivityCount,
		activityType: scoringdomain.ActivityCheckin,
		threshold:    10,
		pointsBonus:  50,
	},
	{
		name:         "Quiz Whiz",
		description:  "Answer ten quiz questions correctly.",
		criteriaType: achievementdomain.CriteriaActivityCount,
		activityType: scoringdomain.ActivityQuizCorrect,
		threshold:    10,
		pointsBonus:  30,
	},
	{
		name:         "Chapter Master",
		description:  "Finish five chapters.",
		criteriaType: achievementdomain.CriteriaActivityCount,
		activityType: scoringdomain.ActivityChapterComplete,
		threshold:    5,
		pointsBonus:  40,
	},
	{
		name:         "Century Club",
		description:  "Reach 100 total points.",
		criteriaType: achievementdomain.CriteriaScoreThreshold,
		threshold:    100,
		pointsBonus:  25,
	},
	{
		name:         "Point Collector",
		description:  "Reach 1000 total points.",
		criteriaType: achievementdomain.CriteriaScoreThreshold,
		threshold:    1000,
		pointsBonus:  100,
	},
	{
		name:         "Rising Star",
		description:  "Reach level 5.",
		criteriaType: achievementdomain.CriteriaLevelThreshold,
		threshold:    5,
		pointsBonus:  50,
	},
	{
		name:         "Week Streak",
		description:  "Check in seven days in a row.",
		criteriaType: achievementdomain.CriteriaStreakDays,
		activityType: scoringdomain.ActivityCheckin,
		threshold:    7,
		pointsBonus:  75,
	},
	{
		name:         "Well Rounded",
		description:  "Earn points from five different activities.",
		criteriaType: achievementdomain.CriteriaActivityVariety,
		threshold:    5,
		pointsBonus:  60,
	},
}

// EnsureAchievementDefinitions installs the default catalog. Existing
// codes are left alone so operator edits survive restarts.
func EnsureAchievementDefinitions(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rows := make([]achievementdomain.Definition, 0, len(defaultDefinitions))
	for _, def := range defaultDefinitions {
		rows = append(rows, achievementdomain.Definition{
			ID:           node.Generate().Int64(),
			Code:         slug.Make(def.name),
			Name:         def.name,
			Description:  def.description,
			CriteriaType: def.criteriaType,
			ActivityType: def.activityType,
			Threshold:    def.threshold,
			PointsBonus:  def.pointsBonus,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// EnsureDemoEvents seeds a pair of events so a fresh install has
// something to scan against. Gated behind SEED_DEMO_DATA.
func EnsureDemoEvents(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	events := []eventdomain.Event{
		{
			ID:        node.Generate().Int64(),
			Code:      "demo-arena",
			Name:      "Demo Arena Night",
			Phase:     "doors",
			Active:    true,
			Chapters:  5,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        node.Generate().Int64(),
			Code:      "demo-festival",
			Name:      "Demo Festival Weekend",
			Phase:     "day1",
			Active:    false,
			Chapters:  8,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&events).Error
}
