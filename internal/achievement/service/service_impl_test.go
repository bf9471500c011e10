package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fanpulse/fanpulse/internal/achievement/domain"
	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/config"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/scoring/ledger"
	scoringservice "github.com/fanpulse/fanpulse/internal/scoring/service"
	"github.com/fanpulse/fanpulse/pkg/repository"
)

type testEnv struct {
	db      *gorm.DB
	node    *snowflake.Node
	clk     *clock.FakeClock
	svc     domain.Service
	scoring scoringdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&scoringdomain.ScoreEvent{},
		&scoringdomain.UserScoreAggregate{},
		&domain.Definition{},
		&domain.UserAchievement{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	rules := config.NewStaticScoringConfigHolder(config.DefaultScoringConfig())
	lg := ledger.New(db)

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		GenID:  node,
		Ledger: lg,
		Rules:  rules,
		Defs:   repository.ProvideStore[domain.Definition](db),
	})

	scoringSvc := scoringservice.New(scoringservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		GenID:  node,
		Ledger: lg,
		Rules:  rules,
		Eval:   svc,
	})

	return &testEnv{db: db, node: node, clk: clk, svc: svc, scoring: scoringSvc}
}

func (e *testEnv) addDefinition(t *testing.T, def domain.Definition) {
	t.Helper()
	def.ID = e.node.Generate().Int64()
	def.Active = true
	def.CreatedAt = e.clk.Now()
	def.UpdatedAt = e.clk.Now()
	require.NoError(t, e.db.Create(&def).Error)
}

func TestActivityCountUnlocksExactlyOnThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := int64(5)

	env.addDefinition(t, domain.Definition{
		Code:         "quiz-whiz",
		Name:         "Quiz Whiz",
		CriteriaType: domain.CriteriaActivityCount,
		ActivityType: scoringdomain.ActivityQuizCorrect,
		Threshold:    10,
		PointsBonus:  30,
	})

	for i := 1; i <= 9; i++ {
		res, err := env.scoring.Award(ctx, scoringdomain.AwardRequest{
			UserID:        userID,
			ActivityType:  "quiz_correct",
			ReferenceType: "quiz",
			ReferenceID:   fmt.Sprintf("q-%d", i),
		})
		require.NoError(t, err)
		assert.Empty(t, res.NewAchievements, "award %d must not unlock", i)
	}

	tenth, err := env.scoring.Award(ctx, scoringdomain.AwardRequest{
		UserID:        userID,
		ActivityType:  "quiz_correct",
		ReferenceType: "quiz",
		ReferenceID:   "q-10",
	})
	require.NoError(t, err)
	require.Len(t, tenth.NewAchievements, 1)
	assert.Equal(t, "quiz-whiz", tenth.NewAchievements[0].Code)
	// 10 x 10 points plus the 30 point bonus.
	assert.Equal(t, int64(130), tenth.TotalScore)

	eleventh, err := env.scoring.Award(ctx, scoringdomain.AwardRequest{
		UserID:        userID,
		ActivityType:  "quiz_correct",
		ReferenceType: "quiz",
		ReferenceID:   "q-11",
	})
	require.NoError(t, err)
	assert.Empty(t, eleventh.NewAchievements, "must not re-trigger")
}

func TestScoreThresholdCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := int64(6)

	env.addDefinition(t, domain.Definition{
		Code:         "first-steps",
		Name:         "First Steps",
		CriteriaType: domain.CriteriaActivityCount,
		ActivityType: scoringdomain.ActivityCheckin,
		Threshold:    1,
		PointsBonus:  80,
	})
	// 25 checkin points + 80 bonus cross this threshold in the same
	// evaluation.
	env.addDefinition(t, domain.Definition{
		Code:         "century",
		Name:         "Century",
		CriteriaType: domain.CriteriaScoreThreshold,
		Threshold:    100,
	})

	res, err := env.scoring.Award(ctx, scoringdomain.AwardRequest{
		UserID:        userID,
		ActivityType:  "checkin",
		ReferenceType: "node",
		ReferenceID:   "evt1:ch1",
	})
	require.NoError(t, err)

	codes := make([]string, 0, len(res.NewAchievements))
	for _, u := range res.NewAchievements {
		codes = append(codes, u.Code)
	}
	assert.ElementsMatch(t, []string{"first-steps", "century"}, codes)
	assert.Equal(t, int64(105), res.TotalScore)
}

func TestStreakCriteria(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := int64(7)

	env.addDefinition(t, domain.Definition{
		Code:         "regular",
		Name:         "Regular",
		CriteriaType: domain.CriteriaStreakDays,
		ActivityType: scoringdomain.ActivityCheckin,
		Threshold:    3,
	})

	var last *scoringdomain.AwardResult
	for i := 0; i < 3; i++ {
		var err error
		last, err = env.scoring.Award(ctx, scoringdomain.AwardRequest{
			UserID:        userID,
			ActivityType:  "checkin",
			ReferenceType: "node",
			ReferenceID:   fmt.Sprintf("evt1:ch%d", i),
		})
		require.NoError(t, err)
		env.clk.Advance(24 * time.Hour)
	}

	require.Len(t, last.NewAchievements, 1)
	assert.Equal(t, "regular", last.NewAchievements[0].Code)
}

func TestVarietyCriteria(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := int64(8)

	env.addDefinition(t, domain.Definition{
		Code:         "all-rounder",
		Name:         "All Rounder",
		CriteriaType: domain.CriteriaActivityVariety,
		Threshold:    3,
	})

	activities := []string{"checkin", "quiz_correct", "poll_vote"}
	var last *scoringdomain.AwardResult
	for i, at := range activities {
		var err error
		last, err = env.scoring.Award(ctx, scoringdomain.AwardRequest{
			UserID:        userID,
			ActivityType:  at,
			ReferenceType: "ref",
			ReferenceID:   fmt.Sprintf("r-%d", i),
		})
		require.NoError(t, err)
	}

	require.Len(t, last.NewAchievements, 1)
	assert.Equal(t, "all-rounder", last.NewAchievements[0].Code)
}

func TestReconcileGrantsMissedUnlocks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := int64(9)

	// Ledger rows exist before the definition does, as if the
	// definition shipped later.
	for i := 0; i < 5; i++ {
		_, err := env.scoring.Award(ctx, scoringdomain.AwardRequest{
			UserID:        userID,
			ActivityType:  "poll_vote",
			ReferenceType: "poll",
			ReferenceID:   fmt.Sprintf("p-%d", i),
		})
		require.NoError(t, err)
	}

	env.addDefinition(t, domain.Definition{
		Code:         "voter",
		Name:         "Voter",
		CriteriaType: domain.CriteriaActivityCount,
		ActivityType: scoringdomain.ActivityPollVote,
		Threshold:    5,
		PointsBonus:  10,
	})

	unlocks, err := env.svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "voter", unlocks[0].Code)

	// Running again is a no-op.
	unlocks, err = env.svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, unlocks)

	score, err := env.scoring.GetScore(ctx, scoringdomain.ScoreRequest{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(35), score.TotalScore)
}

func TestReconcileRepairsMissingBonus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := int64(11)

	env.addDefinition(t, domain.Definition{
		Code:         "first-steps",
		Name:         "First Steps",
		CriteriaType: domain.CriteriaActivityCount,
		ActivityType: scoringdomain.ActivityCheckin,
		Threshold:    1,
		PointsBonus:  80,
	})

	// Crash state: the unlock row committed but the bonus append
	// never ran.
	var def domain.Definition
	require.NoError(t, env.db.First(&def, "code = ?", "first-steps").Error)
	require.NoError(t, env.db.Create(&domain.UserAchievement{
		ID:            env.node.Generate().Int64(),
		UserID:        userID,
		AchievementID: def.ID,
		AwardedAt:     env.clk.Now(),
	}).Error)

	unlocks, err := env.svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, unlocks, "repair is not a new unlock")

	var bonuses int64
	require.NoError(t, env.db.Model(&scoringdomain.ScoreEvent{}).
		Where("user_id = ? AND activity_type = ?", userID, scoringdomain.ActivityAchievementBonus).
		Count(&bonuses).Error)
	assert.Equal(t, int64(1), bonuses)

	score, err := env.scoring.GetScore(ctx, scoringdomain.ScoreRequest{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(80), score.TotalScore)

	// Repairing twice changes nothing.
	_, err = env.svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&scoringdomain.ScoreEvent{}).
		Where("user_id = ? AND activity_type = ?", userID, scoringdomain.ActivityAchievementBonus).
		Count(&bonuses).Error)
	assert.Equal(t, int64(1), bonuses)
}

func TestListForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := int64(10)

	env.addDefinition(t, domain.Definition{
		Code:         "first-steps",
		Name:         "First Steps",
		CriteriaType: domain.CriteriaActivityCount,
		ActivityType: scoringdomain.ActivityCheckin,
		Threshold:    1,
	})
	env.addDefinition(t, domain.Definition{
		Code:         "marathon",
		Name:         "Marathon",
		CriteriaType: domain.CriteriaActivityCount,
		ActivityType: scoringdomain.ActivityCheckin,
		Threshold:    100,
	})

	_, err := env.scoring.Award(ctx, scoringdomain.AwardRequest{
		UserID:        userID,
		ActivityType:  "checkin",
		ReferenceType: "node",
		ReferenceID:   "evt1:ch1",
	})
	require.NoError(t, err)

	resp, err := env.svc.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, resp.Unlocked, 1)
	assert.Equal(t, "first-steps", resp.Unlocked[0].Code)
	require.Len(t, resp.Remaining, 1)
	assert.Equal(t, "marathon", resp.Remaining[0].Code)
}
