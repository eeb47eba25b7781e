// Package idempotency remembers the response to a keyed request so a retried
// order submission returns the first result instead of placing a second order.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrInProgress is returned while the first request with the same key is still running.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

const pendingMarker = "pending"

// Response is a stored HTTP response.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Store records keyed responses.
type Store interface {
	// Begin claims key for userID. It returns the stored response when the
	// key was already completed and nil when the caller should proceed.
	Begin(ctx context.Context, userID int64, key string) (*Response, error)
	// Complete stores the response for a claimed key.
	Complete(ctx context.Context, userID int64, key string, resp Response) error
	// Release drops a claim so the request may be retried.
	Release(ctx context.Context, userID int64, key string) error
}

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps claims and responses in Redis with a TTL.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration, logger zerolog.Logger) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return newRedisStore(client, ttl, logger), client, nil
}

func newRedisStore(client redisClient, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "idempotency").Logger(),
	}
}

func storageKey(userID int64, key string) string {
	return "idempotency:orders:" + strconv.FormatInt(userID, 10) + ":" + key
}

// Begin implements Store.
func (s *RedisStore) Begin(ctx context.Context, userID int64, key string) (*Response, error) {
	k := storageKey(userID, key)

	claimed, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		claimed, err = s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if claimed {
			return nil, nil
		}
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if raw == pendingMarker {
		return nil, ErrInProgress
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		s.logger.Error().Err(err).Str("key", k).Msg("corrupt idempotency record")
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}

	s.logger.Debug().Int64("user_id", userID).Str("key", key).Msg("replaying stored response")
	return &resp, nil
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, userID int64, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, storageKey(userID, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, userID int64, key string) error {
	if err := s.client.Del(ctx, storageKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
