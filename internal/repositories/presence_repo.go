package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/salespulse/realtime/internal/models"
)

const (
	presenceKeyPrefix = "presence:"
	presenceTTL       = 60 * time.Second // Presence expires after 60 seconds without a heartbeat
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// SetPresence marks a user online with automatic TTL. The hub refreshes it
// on every client heartbeat to maintain "online" status.
func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	// Update LastSeen to now
	presence.LastSeen = time.Now()

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	key := presenceKey(presence.OrganizationID, presence.UserID)
	err = r.client.Set(ctx, key, data, presenceTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	return nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, organizationID, userID string) error {
	key := presenceKey(organizationID, userID)

	err := r.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}

	return nil
}

// ListOnline returns every user currently online in the organization. Users
// whose presence key has expired are simply absent.
func (r *RedisPresenceRepository) ListOnline(ctx context.Context, organizationID string) ([]*models.Presence, error) {
	pattern := presenceKeyPrefix + organizationID + ":*"

	var online []*models.Presence
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			// Expired between SCAN and GET; treat as offline.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get presence: %w", err)
		}

		var presence models.Presence
		if err := json.Unmarshal([]byte(data), &presence); err != nil {
			// Unreadable entry, skip it rather than fail the listing.
			continue
		}
		online = append(online, &presence)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}

	return online, nil
}

// Helper: build Redis key for presence
func presenceKey(organizationID, userID string) string {
	return fmt.Sprintf("%s%s:%s", presenceKeyPrefix, organizationID, userID)
}
