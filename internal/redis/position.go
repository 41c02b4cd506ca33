package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	shuttlePositionKey   = "shuttles:positions"
	shuttlePositionAtKey = "shuttles:positions:at"
)

// ShuttlePosition is the last reported position of a shuttle.
type ShuttlePosition struct {
	ShuttleID  string
	Lat        float64
	Lng        float64
	ReportedAt time.Time
}

// PositionStore keeps shuttle positions in a Redis geo set, with report
// times in a companion hash.
type PositionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(client *redis.Client) *PositionStore {
	return &PositionStore{client: client, now: time.Now}
}

// UpdatePosition stores a shuttle's position using GEOADD.
func (s *PositionStore) UpdatePosition(ctx context.Context, shuttleID string, lat, lng float64) error {
	pipe := s.client.TxPipeline()
	pipe.GeoAdd(ctx, shuttlePositionKey, &redis.GeoLocation{
		Name:      shuttleID,
		Longitude: lng,
		Latitude:  lat,
	})
	pipe.HSet(ctx, shuttlePositionAtKey, shuttleID, s.now().UTC().Format(time.RFC3339Nano))
	_, err := pipe.Exec(ctx)
	return err
}

// GetPosition returns the shuttle's last position, or nil if it never reported.
func (s *PositionStore) GetPosition(ctx context.Context, shuttleID string) (*ShuttlePosition, error) {
	pipe := s.client.Pipeline()
	posCmd := pipe.GeoPos(ctx, shuttlePositionKey, shuttleID)
	atCmd := pipe.HGet(ctx, shuttlePositionAtKey, shuttleID)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	positions, err := posCmd.Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}

	pos := &ShuttlePosition{
		ShuttleID: shuttleID,
		Lat:       positions[0].Latitude,
		Lng:       positions[0].Longitude,
	}
	if at, err := atCmd.Result(); err == nil {
		pos.ReportedAt, _ = time.Parse(time.RFC3339Nano, at)
	}
	return pos, nil
}

// RemovePosition removes a shuttle from the geo index.
func (s *PositionStore) RemovePosition(ctx context.Context, shuttleID string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, shuttlePositionKey, shuttleID)
	pipe.HDel(ctx, shuttlePositionAtKey, shuttleID)
	_, err := pipe.Exec(ctx)
	return err
}
