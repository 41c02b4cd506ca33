package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// The Local stores are in-process stand-ins used when REDIS_ADDR is empty.
// They only coordinate within a single replica.

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

func (e expiring[T]) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// LocalLockStore is an in-process LockStoreInterface.
type LocalLockStore struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

type localLock struct {
	token   string
	expires time.Time
}

// NewLocalLockStore creates a new LocalLockStore.
func NewLocalLockStore() *LocalLockStore {
	return &LocalLockStore{locks: make(map[string]localLock), now: time.Now}
}

func (s *LocalLockStore) AcquireShuttleLock(ctx context.Context, shuttleID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if l, ok := s.locks[shuttleID]; ok && now.Before(l.expires) {
		return "", nil
	}
	token := uuid.New().String()
	s.locks[shuttleID] = localLock{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (s *LocalLockStore) ReleaseShuttleLock(ctx context.Context, shuttleID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[shuttleID]; ok && l.token == token {
		delete(s.locks, shuttleID)
	}
	return nil
}

// LocalPositionStore is an in-process PositionStoreInterface.
type LocalPositionStore struct {
	mu        sync.RWMutex
	positions map[string]ShuttlePosition
	now       func() time.Time
}

// NewLocalPositionStore creates a new LocalPositionStore.
func NewLocalPositionStore() *LocalPositionStore {
	return &LocalPositionStore{positions: make(map[string]ShuttlePosition), now: time.Now}
}

func (s *LocalPositionStore) UpdatePosition(ctx context.Context, shuttleID string, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[shuttleID] = ShuttlePosition{ShuttleID: shuttleID, Lat: lat, Lng: lng, ReportedAt: s.now().UTC()}
	return nil
}

func (s *LocalPositionStore) GetPosition(ctx context.Context, shuttleID string) (*ShuttlePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[shuttleID]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (s *LocalPositionStore) RemovePosition(ctx context.Context, shuttleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, shuttleID)
	return nil
}

// LocalHandleStore is an in-process HandleStoreInterface.
type LocalHandleStore struct {
	mu      sync.Mutex
	handles map[string]expiring[VerifiedCheckIn]
	now     func() time.Time
}

// NewLocalHandleStore creates a new LocalHandleStore. now may be nil.
func NewLocalHandleStore(now func() time.Time) *LocalHandleStore {
	if now == nil {
		now = time.Now
	}
	return &LocalHandleStore{handles: make(map[string]expiring[VerifiedCheckIn]), now: now}
}

func (s *LocalHandleStore) SaveHandle(ctx context.Context, handle string, v *VerifiedCheckIn, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[handle] = expiring[VerifiedCheckIn]{value: *v, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *LocalHandleStore) GetHandle(ctx context.Context, handle string) (*VerifiedCheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.handles[handle]
	if !ok || !e.live(s.now()) {
		delete(s.handles, handle)
		return nil, ErrHandleNotFound
	}
	v := e.value
	return &v, nil
}

// LocalResponseCache is an in-process ResponseCacheInterface.
type LocalResponseCache struct {
	mu        sync.Mutex
	responses map[string]expiring[CachedResponse]
	now       func() time.Time
}

// NewLocalResponseCache creates a new LocalResponseCache.
func NewLocalResponseCache() *LocalResponseCache {
	return &LocalResponseCache{responses: make(map[string]expiring[CachedResponse]), now: time.Now}
}

func (s *LocalResponseCache) GetResponse(ctx context.Context, key string) (*CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.responses[key]
	if !ok || !e.live(s.now()) {
		delete(s.responses, key)
		return nil, nil
	}
	resp := e.value
	return &resp, nil
}

func (s *LocalResponseCache) SetResponse(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key] = expiring[CachedResponse]{value: *resp, expiresAt: s.now().Add(ttl)}
	return nil
}
