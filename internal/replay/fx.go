package replay

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fanpulse/fanpulse/internal/clock"
	"github.com/fanpulse/fanpulse/internal/config"
)

// pruneInterval is how often the in-process store sweeps expired
// entries.
const pruneInterval = time.Minute

var Module = fx.Module("replay",
	fx.Provide(NewStore),
	fx.Provide(func(store Store, cfg config.Config, clk clock.Clock) *Guard {
		return NewGuard(store, cfg.ReplayWindow, clk)
	}),
)

// NewStore selects the replay cache backend from configuration. The
// memory store gets an fx-managed sweeper goroutine; the redis store
// relies on key expiry.
func NewStore(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) (Store, error) {
	switch cfg.ReplayStore {
	case config.ReplayStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		log.Info("replay store using redis", zap.String("addr", cfg.RedisAddr))
		return NewRedisStore(client), nil

	case config.ReplayStoreMemory, "":
		store := NewMemoryStore(clk)
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					ticker := time.NewTicker(pruneInterval)
					defer ticker.Stop()
					for {
						select {
						case <-ticker.C:
							store.Prune()
						case <-done:
							return
						}
					}
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				close(done)
				return nil
			},
		})
		return store, nil

	default:
		return nil, fmt.Errorf("unknown replay store %q", cfg.ReplayStore)
	}
}
