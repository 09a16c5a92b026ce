package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus represents a user's online status
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore handles presence tracking in Redis
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// Redis key prefixes for presence
const (
	presenceKeyPrefix = "presence:"       // Per-user presence data
	presenceOnlineSet = "presence:online" // Set of online user IDs
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{
		client: client,
		ttl:    ttl,
	}
}

// SetOnline marks a user as online
func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	now := time.Now()
	status := PresenceStatus{
		UserID:   userID,
		IsOnline: true,
		LastSeen: now,
	}

	pipe := p.client.Pipeline()

	data, _ := json.Marshal(status)
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)

	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline marks a user as offline
func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	now := time.Now()
	status := PresenceStatus{
		UserID:   userID,
		IsOnline: false,
		LastSeen: now,
	}

	pipe := p.client.Pipeline()

	data, _ := json.Marshal(status)
	// Keep offline status longer for last-seen queries.
	pipe.Set(ctx, presenceKeyPrefix+userID, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, userID)

	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat refreshes the TTL on a user's online record.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	return p.client.Expire(ctx, presenceKeyPrefix+userID, p.ttl).Err()
}

// IsOnline reports whether the user currently has a live connection anywhere.
func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

// GetStatus returns the stored presence record for a user.
func (p *PresenceStore) GetStatus(ctx context.Context, userID string) (PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return PresenceStatus{UserID: userID, IsOnline: false}, nil
		}
		return PresenceStatus{}, err
	}
	var status PresenceStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return PresenceStatus{}, err
	}
	return status, nil
}
