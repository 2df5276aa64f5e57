package rpcstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "rate:"
	attemptsPrefix  = "login_attempts:"
	usersSeenKey    = "stats:users_seen"
	attemptsKey     = "stats:login_attempts"
	failuresKey     = "stats:failed_attempts"
)

// RedisStore backs Store with Redis so counters and the audit trail are
// shared across instances.
type RedisStore struct {
	client *redis.Client
	tokens TokenCounter
}

type RedisOption func(*RedisStore)

// WithRedisTokenCounter supplies the linked-calendar count for dashboard
// stats.
func WithRedisTokenCounter(tokens TokenCounter) RedisOption {
	return func(s *RedisStore) {
		s.tokens = tokens
	}
}

func NewRedisStore(client *redis.Client, options ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// CheckRateLimit is a fixed-window counter: INCR the key and set the window
// expiry on first increment.
func (s *RedisStore) CheckRateLimit(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	if max <= 0 {
		return false, nil
	}

	count, err := s.client.Incr(ctx, rateLimitPrefix+key).Result()
	if err != nil {
		return false, errors.Wrap(err, "[CheckRateLimit] incr")
	}
	if count == 1 {
		if err := s.client.Expire(ctx, rateLimitPrefix+key, window).Err(); err != nil {
			return false, errors.Wrap(err, "[CheckRateLimit] expire")
		}
	}
	return count <= int64(max), nil
}

func (s *RedisStore) RecordLoginAttempt(ctx context.Context, attempt LoginAttempt) error {
	if attempt.UserID == "" {
		return errors.New("[RecordLoginAttempt] user ID is required")
	}

	payload, err := json.Marshal(attempt)
	if err != nil {
		return errors.Wrap(err, "[RecordLoginAttempt] encode")
	}

	pipe := s.client.TxPipeline()
	key := attemptsPrefix + attempt.UserID
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, maxAttemptsPerUser-1)
	pipe.SAdd(ctx, usersSeenKey, attempt.UserID)
	pipe.Incr(ctx, attemptsKey)
	if !attempt.Success {
		pipe.Incr(ctx, failuresKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[RecordLoginAttempt] pipeline")
	}
	return nil
}

func (s *RedisStore) RecentLoginAttempts(ctx context.Context, userID string, limit int) ([]LoginAttempt, error) {
	if limit <= 0 || limit > maxAttemptsPerUser {
		limit = maxAttemptsPerUser
	}

	raw, err := s.client.LRange(ctx, attemptsPrefix+userID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[RecentLoginAttempts] lrange")
	}

	attempts := make([]LoginAttempt, 0, len(raw))
	for _, item := range raw {
		var attempt LoginAttempt
		if err := json.Unmarshal([]byte(item), &attempt); err != nil {
			return nil, errors.Wrap(err, "[RecentLoginAttempts] decode")
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

func (s *RedisStore) AdminDashboardStats(ctx context.Context) (Stats, error) {
	users, err := s.client.SCard(ctx, usersSeenKey).Result()
	if err != nil {
		return Stats{}, errors.Wrap(err, "[AdminDashboardStats] users seen")
	}
	total, err := s.client.Get(ctx, attemptsKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, errors.Wrap(err, "[AdminDashboardStats] attempts")
	}
	failed, err := s.client.Get(ctx, failuresKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, errors.Wrap(err, "[AdminDashboardStats] failures")
	}

	stats := Stats{
		UsersSeen:      int(users),
		LoginAttempts:  total,
		FailedAttempts: failed,
	}
	if s.tokens != nil {
		linked, err := s.tokens.CountByProvider(ctx, "google")
		if err != nil {
			return Stats{}, errors.Wrap(err, "[AdminDashboardStats] counting linked calendars")
		}
		stats.LinkedCalendars = linked
	}
	return stats, nil
}
