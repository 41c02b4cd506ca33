package redis

import (
	"context"
	"errors"
	"time"
)

// ErrHandleNotFound is returned when a verification handle is unknown or expired.
var ErrHandleNotFound = errors.New("verification handle not found")

// LockStoreInterface defines the interface for short-lived mutual exclusion.
// Acquire returns an empty token when the lock is already held.
type LockStoreInterface interface {
	AcquireShuttleLock(ctx context.Context, shuttleID string, ttl time.Duration) (string, error)
	ReleaseShuttleLock(ctx context.Context, shuttleID, token string) error
}

// PositionStoreInterface defines the interface for live shuttle positions.
type PositionStoreInterface interface {
	UpdatePosition(ctx context.Context, shuttleID string, lat, lng float64) error
	GetPosition(ctx context.Context, shuttleID string) (*ShuttlePosition, error)
	RemovePosition(ctx context.Context, shuttleID string) error
}

// HandleStoreInterface defines the interface for check-in verification handles.
type HandleStoreInterface interface {
	SaveHandle(ctx context.Context, handle string, v *VerifiedCheckIn, ttl time.Duration) error
	GetHandle(ctx context.Context, handle string) (*VerifiedCheckIn, error)
}

// ResponseCacheInterface defines the interface for idempotent response replay.
type ResponseCacheInterface interface {
	GetResponse(ctx context.Context, key string) (*CachedResponse, error)
	SetResponse(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error
}

// ViewCacheInterface defines the interface for cached read models.
type ViewCacheInterface interface {
	GetTripView(ctx context.Context, tripInstanceID string, dest any) (bool, error)
	SetTripView(ctx context.Context, tripInstanceID string, v any) error
	InvalidateTripView(ctx context.Context, tripInstanceIDs ...string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface     = (*LockStore)(nil)
	_ PositionStoreInterface = (*PositionStore)(nil)
	_ HandleStoreInterface   = (*HandleStore)(nil)
	_ ResponseCacheInterface = (*ResponseCache)(nil)
	_ ViewCacheInterface     = (*CacheStore)(nil)

	_ LockStoreInterface     = (*LocalLockStore)(nil)
	_ PositionStoreInterface = (*LocalPositionStore)(nil)
	_ HandleStoreInterface   = (*LocalHandleStore)(nil)
	_ ResponseCacheInterface = (*LocalResponseCache)(nil)
)
