package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore hands out per-shuttle assignment locks backed by SETNX.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func shuttleLockKey(shuttleID string) string {
	return fmt.Sprintf("lock:shuttle:%s", shuttleID)
}

// AcquireShuttleLock takes the assignment lock of a shuttle for ttl. It
// returns the owner token needed to release it, or "" when the lock is held.
func (s *LockStore) AcquireShuttleLock(ctx context.Context, shuttleID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := s.client.SetNX(ctx, shuttleLockKey(shuttleID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseShuttleLock drops the lock if token still owns it. A lock that
// expired and was taken by someone else is left alone.
func (s *LockStore) ReleaseShuttleLock(ctx context.Context, shuttleID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{shuttleLockKey(shuttleID)}, token).Err()
}
