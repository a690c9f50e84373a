package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modaline/store-api/internal/models"
)

// sessionTTL bounds how long a session snapshot stays hot. Sessions past this
// age are settled from the database, not the cache.
const sessionTTL = 24 * time.Hour

// SessionCache keeps hot PaymentSession snapshots in Redis so the callback
// and status paths avoid a database round trip. The database row stays the
// source of truth.
type SessionCache struct {
	redis *RedisClient
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(redis *RedisClient) *SessionCache {
	return &SessionCache{redis: redis}
}

// key returns the Redis key for a session by conversation ID.
func (c *SessionCache) key(conversationID string) string {
	return fmt.Sprintf("payment:session:%s", conversationID)
}

// Put stores a session snapshot keyed by its conversation ID.
func (c *SessionCache) Put(ctx context.Context, session *models.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.redis.Set(ctx, c.key(session.ConversationID), string(data), sessionTTL)
}

// Get retrieves a session snapshot by conversation ID. Returns redis.Nil
// through the underlying client when the key is absent.
func (c *SessionCache) Get(ctx context.Context, conversationID string) (*models.PaymentSession, error) {
	raw, err := c.redis.Get(ctx, c.key(conversationID))
	if err != nil {
		return nil, err
	}
	var session models.PaymentSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes a session snapshot.
func (c *SessionCache) Delete(ctx context.Context, conversationID string) error {
	return c.redis.Delete(ctx, c.key(conversationID))
}
