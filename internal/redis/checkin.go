package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkInHandlePrefix = "checkin:handle:"

// VerifiedCheckIn is what a verification handle points at: a token that
// passed checkQr for a given driver and has not been confirmed yet.
type VerifiedCheckIn struct {
	TokenID        string    `json:"token_id"`
	BookingID      string    `json:"booking_id"`
	TripInstanceID string    `json:"trip_instance_id"`
	DriverID       string    `json:"driver_id"`
	VerifiedAt     time.Time `json:"verified_at"`
}

// HandleStore keeps verification handles in Redis with a TTL.
type HandleStore struct {
	client *redis.Client
}

// NewHandleStore creates a new HandleStore.
func NewHandleStore(client *redis.Client) *HandleStore {
	return &HandleStore{client: client}
}

// SaveHandle stores a handle until ttl elapses.
func (s *HandleStore) SaveHandle(ctx context.Context, handle string, v *VerifiedCheckIn, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, checkInHandlePrefix+handle, data, ttl).Err()
}

// GetHandle returns ErrHandleNotFound once the handle expired.
func (s *HandleStore) GetHandle(ctx context.Context, handle string) (*VerifiedCheckIn, error) {
	data, err := s.client.Get(ctx, checkInHandlePrefix+handle).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrHandleNotFound
		}
		return nil, err
	}

	var v VerifiedCheckIn
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
