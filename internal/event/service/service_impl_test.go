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
	"github.com/fanpulse/fanpulse/internal/event/domain"
	"github.com/fanpulse/fanpulse/pkg/repository"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)),
		GenID: node,
		Repo:  repository.ProvideStore[domain.Event](db),
	})
	return svc, db
}

func TestCreateDerivesCodeFromName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, domain.CreateRequest{Name: "Arena Night 2026", Chapters: 5})
	require.NoError(t, err)
	assert.Equal(t, "arena-night-2026", resp.Code)
	assert.True(t, resp.Active)
	assert.Equal(t, 5, resp.Chapters)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Code: "arena", Name: "Arena"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateRequest{Code: "arena", Name: "Arena Again"})
	assert.ErrorIs(t, err, domain.ErrCodeTaken)
}

func TestCreateInactivePersistsFalse(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	inactive := false
	resp, err := svc.Create(ctx, domain.CreateRequest{Code: "arena", Name: "Arena", Active: &inactive})
	require.NoError(t, err)
	assert.False(t, resp.Active)

	// The stored row must carry the false, not a column default.
	var ev domain.Event
	require.NoError(t, db.First(&ev, "code = ?", "arena").Error)
	assert.False(t, ev.Active)
}

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateRequest{Code: "arena"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestValidateScan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inactive := false
	_, err := svc.Create(ctx, domain.CreateRequest{Code: "arena", Name: "Arena"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Code: "closed", Name: "Closed", Active: &inactive})
	require.NoError(t, err)

	t.Run("active event passes", func(t *testing.T) {
		ev, err := svc.ValidateScan(ctx, "arena", "")
		require.NoError(t, err)
		assert.Equal(t, "arena", ev.Code)
	})

	t.Run("expected code must match", func(t *testing.T) {
		_, err := svc.ValidateScan(ctx, "arena", "other")
		assert.ErrorIs(t, err, domain.ErrEventMismatch)
	})

	t.Run("inactive event rejected", func(t *testing.T) {
		_, err := svc.ValidateScan(ctx, "closed", "")
		assert.ErrorIs(t, err, domain.ErrEventInactive)
	})

	t.Run("unknown event rejected", func(t *testing.T) {
		_, err := svc.ValidateScan(ctx, "phantom", "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSetActiveAndPhase(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Code: "arena", Name: "Arena", Phase: "doors"})
	require.NoError(t, err)

	resp, err := svc.SetPhase(ctx, "arena", "encore")
	require.NoError(t, err)
	assert.Equal(t, "encore", resp.Phase)

	resp, err = svc.SetActive(ctx, "arena", false)
	require.NoError(t, err)
	assert.False(t, resp.Active)

	_, err = svc.ValidateScan(ctx, "arena", "")
	assert.ErrorIs(t, err, domain.ErrEventInactive)
}

func TestListFiltersByActive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inactive := false
	_, err := svc.Create(ctx, domain.CreateRequest{Code: "a", Name: "A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Code: "b", Name: "B", Active: &inactive})
	require.NoError(t, err)

	active := true
	events, err := svc.List(ctx, domain.ListRequest{Active: &active})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Code)
}
