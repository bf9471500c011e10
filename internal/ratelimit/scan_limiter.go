package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"

	"github.com/fanpulse/fanpulse/internal/config"
)

const (
	keyScanUser = "fanpulse:scan:user:%s"
	keySeedLock = "fanpulse:seed:lock"
)

// ScanLimiter throttles token validation attempts per user. Signature
// guessing is the concern: each failed scan leaks one bit of oracle,
// so the validate endpoint is the only brute-forceable surface.
type ScanLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate  float64
	burst int
}

func NewScanLimiter(cfg config.Config) (*ScanLimiter, error) {
	limitCfg := cfg.ScanRateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("scan rate limit requires a redis addr")
	}
	if limitCfg.Rate <= 0 || limitCfg.Burst <= 0 {
		return nil, fmt.Errorf("scan rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &ScanLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.Rate,
		burst:   limitCfg.Burst,
	}, nil
}

func (l *ScanLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowUser charges one validation attempt against the user's bucket.
// A disabled limiter always allows.
func (l *ScanLimiter) AllowUser(ctx context.Context, userID int64) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyScanUser, snowflake.ID(userID).String())
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}

// SeedLock exposes the shared locker for one-shot startup work.
func (l *ScanLimiter) SeedLock() *Locker {
	if !l.Enabled() {
		return nil
	}
	return l.locker
}

// SeedLockKey is the well-known key the seeder locks on.
func SeedLockKey() string { return keySeedLock }
