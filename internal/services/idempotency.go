package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// claimMarker is the value a key holds while its first request is running
const claimMarker = "in-flight"

// releaseScript deletes a key only while it still holds the claim marker, so
// a stored response is never removed
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StoredResponse is a write action's answer kept for replay
type StoredResponse struct {
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Cached     bool            `json:"cached"`
	StoredAt   time.Time       `json:"stored_at"`
}

// redisIdempotencyStore implements IdempotencyStore on redis
type redisIdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a redis-backed idempotency store
func NewIdempotencyStore(client *redis.Client) IdempotencyStore {
	return &redisIdempotencyStore{client: client}
}

// BuildIdempotencyKey scopes a client key to its tenant
func BuildIdempotencyKey(tenantID, key string) string {
	return fmt.Sprintf("idempotency:tenant:%s:key:%s", tenantID, key)
}

// Claim reserves key for one request. It reports false when the key is
// already claimed or already holds a response.
func (s *redisIdempotencyStore) Claim(ctx context.Context, tenantID, key string, ttl time.Duration) (bool, error) {
	redisKey := BuildIdempotencyKey(tenantID, key)

	claimed, err := s.client.SetNX(ctx, redisKey, claimMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key %s: %w", redisKey, err)
	}
	return claimed, nil
}

// Release drops an unfinished claim on key
func (s *redisIdempotencyStore) Release(ctx context.Context, tenantID, key string) error {
	redisKey := BuildIdempotencyKey(tenantID, key)

	if err := releaseScript.Run(ctx, s.client, []string{redisKey}, claimMarker).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key %s: %w", redisKey, err)
	}
	return nil
}

// Lookup returns the stored response for key, or nil when none exists or the
// key is only claimed
func (s *redisIdempotencyStore) Lookup(ctx context.Context, tenantID, key string) (*StoredResponse, error) {
	redisKey := BuildIdempotencyKey(tenantID, key)

	val, err := s.client.Get(ctx, redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency key %s: %w", redisKey, err)
	}

	stored, err := decodeStoredResponse(val)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored response for key %s: %w", redisKey, err)
	}
	return stored, nil
}

// Remember stores a response for key, replacing the claim
func (s *redisIdempotencyStore) Remember(ctx context.Context, tenantID, key string, response *StoredResponse, ttl time.Duration) error {
	redisKey := BuildIdempotencyKey(tenantID, key)

	if response.StoredAt.IsZero() {
		response.StoredAt = time.Now()
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response for key %s: %w", redisKey, err)
	}

	if err := s.client.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set idempotency key %s: %w", redisKey, err)
	}

	return nil
}

func decodeStoredResponse(val string) (*StoredResponse, error) {
	if val == claimMarker {
		return nil, nil
	}

	var stored StoredResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
