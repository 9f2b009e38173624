package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPending = "pending"
	minPendingTTL      = 2 * time.Minute
	pendingMargin      = 30 * time.Second
)

// StoredResponse is the replayable outcome of a completed request.
type StoredResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

type idempotencyRecord struct {
	State    string          `json:"state"`
	Response *StoredResponse `json:"response,omitempty"`
}

// IdempotencyStore remembers responses by Idempotency-Key so a retried
// POST /orders never creates a second order.
type IdempotencyStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewIdempotencyStore keeps completed responses for ttl. A claim stays
// pending for at least requestTimeout plus a margin, so it cannot lapse
// while the request that holds it is still running.
func NewIdempotencyStore(client *redis.Client, ttl, requestTimeout time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client:     client,
		ttl:        ttl,
		pendingTTL: max(minPendingTTL, requestTimeout+pendingMargin),
	}
}

// Begin claims key for the caller. It returns the stored response when the
// key already completed, ErrRequestInProgress when another request holds
// it, and (nil, nil) when the caller now owns the key.
func (s *IdempotencyStore) Begin(ctx context.Context, userID, key string) (*StoredResponse, error) {
	redisKey := idempotencyKey(userID, key)
	pending, err := json.Marshal(idempotencyRecord{State: idempotencyPending})
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record failed: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, redisKey, pending, s.pendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx failed: %w", err)
	}
	if claimed {
		return nil, nil
	}

	data, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry
		return nil, ErrRequestInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record idempotencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record failed: %w", err)
	}
	if record.State == idempotencyPending || record.Response == nil {
		return nil, ErrRequestInProgress
	}
	return record.Response, nil
}

// Complete stores the response for replay.
func (s *IdempotencyStore) Complete(ctx context.Context, userID, key string, resp StoredResponse) error {
	data, err := json.Marshal(idempotencyRecord{State: "completed", Response: &resp})
	if err != nil {
		return fmt.Errorf("marshal idempotency record failed: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyKey(userID, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Abandon frees key after a failed request so the client may retry.
func (s *IdempotencyStore) Abandon(ctx context.Context, userID, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func idempotencyKey(userID, key string) string {
	return fmt.Sprintf("idempotency:orders:%s:%s", userID, key)
}
