// Package redis provides Redis-backed store implementations.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marketloop/mobile-backend/logger"
	"github.com/marketloop/mobile-backend/pkg/geo"
	"github.com/marketloop/mobile-backend/store"
	"github.com/marketloop/mobile-backend/types"
	"github.com/redis/go-redis/v9"
)

const (
	lastKnownLocationPrefix = "last_location:"
	locationIndexKey        = "last_location_index"
)

// LocationStore keeps each user's last-known location in Redis with a TTL,
// plus a set of user IDs for radius scans. Implements store.LocationStore.
type LocationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocationStore creates a Redis-backed location store. Entries expire
// after ttl; stale entries are skipped and pruned during scans.
func NewLocationStore(client *redis.Client, ttl time.Duration) *LocationStore {
	return &LocationStore{client: client, ttl: ttl}
}

func (s *LocationStore) SetLastKnown(ctx context.Context, userID string, loc types.LocationUpdate) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}

	key := lastKnownLocationPrefix + userID
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	pipe.SAdd(ctx, locationIndexKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save last-known location: %w", err)
	}
	return nil
}

func (s *LocationStore) GetLastKnown(ctx context.Context, userID string) (*types.LocationUpdate, error) {
	data, err := s.client.Get(ctx, lastKnownLocationPrefix+userID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get last-known location: %w", err)
	}

	var loc types.LocationUpdate
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last-known location: %w", err)
	}
	return &loc, nil
}

func (s *LocationStore) UsersWithin(ctx context.Context, lat, lng, radiusMeters float64) ([]string, error) {
	log := logger.GetLogger()

	userIDs, err := s.client.SMembers(ctx, locationIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read location index: %w", err)
	}

	var out []string
	for _, userID := range userIDs {
		loc, err := s.GetLastKnown(ctx, userID)
		if err != nil {
			if err == store.ErrNotFound {
				// Location expired; drop the index entry.
				s.client.SRem(ctx, locationIndexKey, userID)
				continue
			}
			log.Warnw("Failed to read last-known location during radius scan",
				"userID", userID, "error", err)
			continue
		}
		if geo.Within(lat, lng, loc.Latitude, loc.Longitude, radiusMeters) {
			out = append(out, userID)
		}
	}
	return out, nil
}
