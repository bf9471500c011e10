package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a best-effort distributed lock (SET NX with a fencing
// token). The seeder takes one so only a single replica writes the
// default catalog.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// TryLock attempts to take the lock and returns the release token.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	fence := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, fence, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return fence, ok, nil
}

// Release frees the lock only when fence still owns it.
func (l *Locker) Release(ctx context.Context, key, fence string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || fence == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, fence).Err()
}
