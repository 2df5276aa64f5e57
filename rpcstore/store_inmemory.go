package rpcstore

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const maxAttemptsPerUser = 100

type window struct {
	count int
	start time.Time
}

// InMemoryStore is a process-local Store for tests and single-node
// deployments.
type InMemoryStore struct {
	mutex    sync.Mutex
	windows  map[string]window
	attempts map[string][]LoginAttempt
	tokens   TokenCounter
	nowTime  func() time.Time
}

type InMemoryOption func(*InMemoryStore)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		s.nowTime = nowFunc
	}
}

// WithTokenCounter supplies the linked-calendar count for dashboard stats.
func WithTokenCounter(tokens TokenCounter) InMemoryOption {
	return func(s *InMemoryStore) {
		s.tokens = tokens
	}
}

func NewInMemoryStore(options ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		windows:  make(map[string]window),
		attempts: make(map[string][]LoginAttempt),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) CheckRateLimit(_ context.Context, key string, max int, windowSize time.Duration) (bool, error) {
	if max <= 0 {
		return false, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.nowTime()
	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= windowSize {
		w = window{start: now}
	}
	w.count++
	s.windows[key] = w
	return w.count <= max, nil
}

func (s *InMemoryStore) RecordLoginAttempt(_ context.Context, attempt LoginAttempt) error {
	if attempt.UserID == "" {
		return errors.New("[RecordLoginAttempt] user ID is required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	list := append(s.attempts[attempt.UserID], attempt)
	if len(list) > maxAttemptsPerUser {
		list = list[len(list)-maxAttemptsPerUser:]
	}
	s.attempts[attempt.UserID] = list
	return nil
}

func (s *InMemoryStore) RecentLoginAttempts(_ context.Context, userID string, limit int) ([]LoginAttempt, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored := s.attempts[userID]
	if limit <= 0 || limit > len(stored) {
		limit = len(stored)
	}

	recent := make([]LoginAttempt, 0, limit)
	for i := len(stored) - 1; i >= len(stored)-limit; i-- {
		recent = append(recent, stored[i])
	}
	return recent, nil
}

func (s *InMemoryStore) AdminDashboardStats(ctx context.Context) (Stats, error) {
	s.mutex.Lock()
	stats := Stats{UsersSeen: len(s.attempts)}
	for _, list := range s.attempts {
		for _, attempt := range list {
			stats.LoginAttempts++
			if !attempt.Success {
				stats.FailedAttempts++
			}
		}
	}
	s.mutex.Unlock()

	if s.tokens != nil {
		linked, err := s.tokens.CountByProvider(ctx, "google")
		if err != nil {
			return Stats{}, errors.Wrap(err, "[AdminDashboardStats] counting linked calendars")
		}
		stats.LinkedCalendars = linked
	}
	return stats, nil
}
