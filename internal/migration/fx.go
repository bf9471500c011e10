package migration

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	achievementdomain "github.com/fanpulse/fanpulse/internal/achievement/domain"
	checkindomain "github.com/fanpulse/fanpulse/internal/checkin/domain"
	"github.com/fanpulse/fanpulse/internal/config"
	eventdomain "github.com/fanpulse/fanpulse/internal/event/domain"
	"github.com/fanpulse/fanpulse/internal/ratelimit"
	scoringdomain "github.com/fanpulse/fanpulse/internal/scoring/domain"
	"github.com/fanpulse/fanpulse/internal/seed"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Cfg     config.Config
	Log     *zap.Logger
	Limiter *ratelimit.ScanLimiter `optional:"true"`
}

var Module = fx.Module("migrations",
	fx.Invoke(func(p Params) error {
		if err := run(p); err != nil {
			return err
		}
		return runSeed(p)
	}),
)

func run(p Params) error {
	// golang-migrate drives the postgres schema; the sqlite path is
	// for local development only and lets gorm derive the same schema
	// from the models.
	if p.Cfg.DBType == "sqlite" {
		return p.DB.AutoMigrate(
			&eventdomain.Event{},
			&scoringdomain.ScoreEvent{},
			&scoringdomain.UserScoreAggregate{},
			&achievementdomain.Definition{},
			&achievementdomain.UserAchievement{},
			&checkindomain.CollectionRecord{},
		)
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func runSeed(p Params) error {
	ctx := context.Background()

	// When several replicas start at once, only one needs to seed.
	// The unique constraints make a race harmless, the lock just
	// keeps the noise down.
	if p.Limiter != nil && p.Limiter.Enabled() {
		fence, ok, err := p.Limiter.SeedLock().TryLock(ctx, ratelimit.SeedLockKey(), seed.LockTTL)
		if err != nil {
			p.Log.Warn("seed lock unavailable, seeding anyway", zap.Error(err))
		} else if !ok {
			p.Log.Info("seed already running elsewhere, skipping")
			return nil
		} else {
			defer func() {
				if err := p.Limiter.SeedLock().Release(ctx, ratelimit.SeedLockKey(), fence); err != nil {
					p.Log.Warn("seed lock release failed", zap.Error(err))
				}
			}()
		}
	}

	if err := seed.EnsureAchievementDefinitions(ctx, p.DB); err != nil {
		return err
	}
	if p.Cfg.SeedDemoData {
		return seed.EnsureDemoEvents(ctx, p.DB)
	}
	return nil
}
