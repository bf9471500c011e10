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

	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/config"
	"github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/scoring/ledger"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.ScoreEvent{},
		&domain.UserScoreAggregate{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		GenID:  node,
		Ledger: ledger.New(db),
		Rules:  config.NewStaticScoringConfigHolder(config.DefaultScoringConfig()),
	})
	return svc.(*Service), clk, db
}

func TestAwardIsIdempotentByReference(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	userID := int64(42)

	req := domain.AwardRequest{
		UserID:        userID,
		ActivityType:  "card_complete",
		ReferenceType: "card",
		ReferenceID:   "card-ch2",
	}

	first, err := svc.Award(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(15), first.PointsAwarded)
	assert.False(t, first.AlreadyAwarded)
	assert.Equal(t, int64(15), first.TotalScore)

	second, err := svc.Award(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, second.PointsAwarded)
	assert.True(t, second.AlreadyAwarded)
	assert.Equal(t, int64(15), second.TotalScore)
}

func TestAwardIsIdempotentByKey(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Award(ctx, domain.AwardRequest{
		UserID:         7,
		ActivityType:   "poll_vote",
		ReferenceType:  "poll",
		ReferenceID:    "p-1",
		IdempotencyKey: "req-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.PointsAwarded)

	// Same key, different reference: the key constraint still
	// collapses the retry.
	second, err := svc.Award(ctx, domain.AwardRequest{
		UserID:         7,
		ActivityType:   "poll_vote",
		ReferenceType:  "poll",
		ReferenceID:    "p-2",
		IdempotencyKey: "req-abc",
	})
	require.NoError(t, err)
	assert.Zero(t, second.PointsAwarded)
	assert.True(t, second.AlreadyAwarded)
}

func TestAwardUpdatesScopedAggregates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	userID := int64(9)

	_, err := svc.Award(ctx, domain.AwardRequest{
		UserID:        userID,
		ActivityType:  "checkin",
		ReferenceType: "node",
		ReferenceID:   "evt1:ch1",
		EventID:       "evt1",
		Phase:         "day-1",
	})
	require.NoError(t, err)

	global, err := svc.GetScore(ctx, domain.ScoreRequest{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(25), global.TotalScore)

	event, err := svc.GetScore(ctx, domain.ScoreRequest{UserID: userID, ScopeType: domain.ScopeEvent, ScopeID: "evt1"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), event.TotalScore)

	phase, err := svc.GetScore(ctx, domain.ScoreRequest{UserID: userID, ScopeType: domain.ScopePhase, ScopeID: "day-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(25), phase.TotalScore)
}

func TestAwardComputesLevels(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	userID := int64(11)

	// Two chapter completions put the user at 100 points, the level 2
	// threshold.
	for i := 0; i < 2; i++ {
		res, err := svc.Award(ctx, domain.AwardRequest{
			UserID:        userID,
			ActivityType:  "chapter_complete",
			ReferenceType: "chapter",
			ReferenceID:   fmt.Sprintf("ch-%d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(50), res.PointsAwarded)
	}

	score, err := svc.GetScore(ctx, domain.ScoreRequest{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(100), score.TotalScore)
	assert.Equal(t, 2, score.Level)
}

func TestAwardRejectsUnknownActivity(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Award(context.Background(), domain.AwardRequest{
		UserID:        1,
		ActivityType:  "interpretive_dance",
		ReferenceType: "r",
		ReferenceID:   "1",
	})
	assert.ErrorIs(t, err, domain.ErrUnknownActivityType)
}

func TestAwardRejectsMissingReference(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Award(context.Background(), domain.AwardRequest{
		UserID:       1,
		ActivityType: "checkin",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestAwardDailyCap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	userID := int64(13)

	first, err := svc.Award(ctx, domain.AwardRequest{
		UserID:        userID,
		ActivityType:  "daily_visit",
		ReferenceType: "visit",
		ReferenceID:   "2026-08-30-a",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.PointsAwarded)

	capped, err := svc.Award(ctx, domain.AwardRequest{
		UserID:        userID,
		ActivityType:  "daily_visit",
		ReferenceType: "visit",
		ReferenceID:   "2026-08-30-b",
	})
	require.NoError(t, err)
	assert.Zero(t, capped.PointsAwarded)
	assert.True(t, capped.CapReached)
	assert.Equal(t, int64(5), capped.TotalScore)
}

func TestAwardDailyCapResetsNextDay(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()
	userID := int64(14)

	_, err := svc.Award(ctx, domain.AwardRequest{
		UserID:        userID,
		ActivityType:  "daily_visit",
		ReferenceType: "visit",
		ReferenceID:   "day-1",
	})
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	next, err := svc.Award(ctx, domain.AwardRequest{
		UserID:        userID,
		ActivityType:  "daily_visit",
		ReferenceType: "visit",
		ReferenceID:   "day-2",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), next.PointsAwarded)
}

func TestCalculateStreak(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()
	userID := int64(21)

	for i := 0; i < 3; i++ {
		_, err := svc.Award(ctx, domain.AwardRequest{
			UserID:        userID,
			ActivityType:  "quiz_correct",
			ReferenceType: "quiz",
			ReferenceID:   fmt.Sprintf("q-%d", i),
		})
		require.NoError(t, err)
		clk.Advance(24 * time.Hour)
	}

	streak, err := svc.CalculateStreak(ctx, userID, domain.ActivityQuizCorrect)
	require.NoError(t, err)
	assert.Equal(t, 3, streak)

	// A two-day gap breaks the run.
	clk.Advance(48 * time.Hour)
	_, err = svc.Award(ctx, domain.AwardRequest{
		UserID:        userID,
		ActivityType:  "quiz_correct",
		ReferenceType: "quiz",
		ReferenceID:   "q-late",
	})
	require.NoError(t, err)

	streak, err = svc.CalculateStreak(ctx, userID, domain.ActivityQuizCorrect)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
}

func TestGetScoreUnknownUserDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	score, err := svc.GetScore(context.Background(), domain.ScoreRequest{UserID: 999})
	require.NoError(t, err)
	assert.Zero(t, score.TotalScore)
	assert.Equal(t, 1, score.Level)
}

func TestGetScoreRejectsUnknownScope(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetScore(context.Background(), domain.ScoreRequest{UserID: 1, ScopeType: "galaxy"})
	assert.ErrorIs(t, err, domain.ErrInvalidScope)
}
