package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smourya/pm25-monitor/internal/aqi"
	"github.com/smourya/pm25-monitor/internal/protocol"
)

// LatestSample is the most recent sample for a location together with its
// computed index.
type LatestSample struct {
	Reading   *protocol.ReadingMessage `json:"reading"`
	AQI       *aqi.Result              `json:"aqi,omitempty"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Store keeps the latest sample per location in Redis so the HTTP API can
// serve it without touching the scheduler or the database.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a latest-sample store. Entries expire after ttl so a
// stopped scheduler does not serve stale data forever.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: redisClient, ttl: ttl}
}

// SetLatest saves the latest sample for a location.
func (s *Store) SetLatest(ctx context.Context, location string, sample *LatestSample) error {
	key := latestKey(location)

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set sample in Redis: %w", err)
	}

	return nil
}

// GetLatest retrieves the latest sample for a location, nil if none.
func (s *Store) GetLatest(ctx context.Context, location string) (*LatestSample, error) {
	data, err := s.redis.Get(ctx, latestKey(location)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample from Redis: %w", err)
	}

	var sample LatestSample
	if err := json.Unmarshal([]byte(data), &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
	}

	return &sample, nil
}

func latestKey(location string) string {
	return fmt.Sprintf("latest_sample:%s", location)
}
