package flowrepo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface with TTL expiry. Suitable for single-instance deployments and
// tests; multi-instance deployments should use the Redis implementation.
type InMemoryRepo struct {
	mu      sync.Mutex
	ttl     time.Duration
	states  map[string]*FlowState
	nowTime func() time.Time
}

type InMemoryOption func(*InMemoryRepo)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryRepo creates an in-memory flow state repository. A zero ttl
// selects DefaultTTL.
func NewInMemoryRepo(ttl time.Duration, options ...InMemoryOption) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &InMemoryRepo{
		ttl:     ttl,
		states:  make(map[string]*FlowState),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Put(_ context.Context, fs *FlowState) error {
	if fs == nil {
		return errors.New("flow state cannot be nil")
	}
	if fs.State == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy to prevent external modifications
	stored := *fs
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.nowTime()
	}
	r.states[fs.State] = &stored

	// Sweep anything already past its TTL while we hold the lock.
	for key, s := range r.states {
		if r.expired(s) {
			delete(r.states, key)
		}
	}
	return nil
}

func (r *InMemoryRepo) Take(_ context.Context, state string) (*FlowState, error) {
	if state == "" {
		return nil, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fs, exists := r.states[state]
	if !exists {
		return nil, ErrNotFound
	}
	delete(r.states, state)

	if r.expired(fs) {
		return nil, ErrNotFound
	}

	copied := *fs
	return &copied, nil
}

func (r *InMemoryRepo) expired(fs *FlowState) bool {
	return r.nowTime().Sub(fs.CreatedAt) > r.ttl
}
