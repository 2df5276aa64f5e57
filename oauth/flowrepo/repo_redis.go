package flowrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "oauth_flow:"

// RedisRepo stores flow state in Redis with a TTL, so pending authorization
// attempts survive instance restarts and are shared across instances.
type RedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Repo = (*RedisRepo)(nil)

// NewRedisRepo creates a Redis-backed flow state repository. A zero ttl
// selects DefaultTTL.
func NewRedisRepo(client *redis.Client, ttl time.Duration) *RedisRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepo{client: client, ttl: ttl}
}

func (r *RedisRepo) Put(ctx context.Context, fs *FlowState) error {
	if fs == nil {
		return errors.New("flow state cannot be nil")
	}
	if fs.State == "" {
		return errors.New("state cannot be empty")
	}

	stored := *fs
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal flow state: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+fs.State, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store flow state: %w", err)
	}
	return nil
}

func (r *RedisRepo) Take(ctx context.Context, state string) (*FlowState, error) {
	if state == "" {
		return nil, ErrNotFound
	}

	// GETDEL is atomic, which keeps Take single-use even with concurrent
	// callback deliveries.
	payload, err := r.client.GetDel(ctx, redisKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take flow state: %w", err)
	}

	var fs FlowState
	if err := json.Unmarshal(payload, &fs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow state: %w", err)
	}
	return &fs, nil
}
