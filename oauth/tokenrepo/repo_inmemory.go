package tokenrepo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface.
type InMemoryRepo struct {
	mu     sync.RWMutex
	tokens map[string]*StoredToken
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{tokens: make(map[string]*StoredToken)}
}

func key(userID, provider string) string {
	return userID + "/" + provider
}

func (r *InMemoryRepo) Upsert(_ context.Context, tok *StoredToken) error {
	if tok == nil {
		return errors.New("token cannot be nil")
	}
	if tok.UserID == "" || tok.Provider == "" {
		return errors.New("user ID and provider are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *tok
	stored.Scopes = append([]string(nil), tok.Scopes...)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	r.tokens[key(tok.UserID, tok.Provider)] = &stored
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, userID, provider string) (*StoredToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tok, exists := r.tokens[key(userID, provider)]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *tok
	copied.Scopes = append([]string(nil), tok.Scopes...)
	return &copied, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, userID, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, key(userID, provider))
	return nil
}

func (r *InMemoryRepo) CountByProvider(_ context.Context, provider string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, tok := range r.tokens {
		if tok.Provider == provider {
			count++
		}
	}
	return count, nil
}
