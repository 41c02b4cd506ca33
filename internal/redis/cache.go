package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// TripViewCacheTTL bounds staleness of dashboard trip views. Writers also
// invalidate on every mutation, so the TTL only matters for missed events.
const TripViewCacheTTL = 15 * time.Second

const tripViewCachePrefix = "cache:trip-instance:"

// CacheStore handles read-model caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetTripView decodes a cached trip view into dest. It reports false on a miss.
func (s *CacheStore) GetTripView(ctx context.Context, tripInstanceID string, dest any) (bool, error) {
	data, err := s.client.Get(ctx, tripViewCachePrefix+tripInstanceID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetTripView stores a trip view.
func (s *CacheStore) SetTripView(ctx context.Context, tripInstanceID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tripViewCachePrefix+tripInstanceID, data, TripViewCacheTTL).Err()
}

// InvalidateTripView removes trip views using one pipeline round trip.
func (s *CacheStore) InvalidateTripView(ctx context.Context, tripInstanceIDs ...string) error {
	if len(tripInstanceIDs) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range tripInstanceIDs {
		pipe.Del(ctx, tripViewCachePrefix+id)
	}
	_, err := pipe.Exec(ctx)
	return err
}
