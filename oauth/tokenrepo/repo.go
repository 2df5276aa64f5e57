// Package tokenrepo persists long-lived OAuth access/refresh tokens keyed by
// (user, provider). The interface models the managed data store's table API:
// upsert-on-conflict keeps at most one record per key.
package tokenrepo

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("token not found")

// StoredToken is the persisted OAuth token record. AccessToken and
// RefreshToken are opaque secrets and must never be logged or serialized to
// clients.
type StoredToken struct {
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string // empty when the provider issued none
	TokenType    string
	Expiry       time.Time
	Scopes       []string
	UpdatedAt    time.Time
}

// Expired reports whether the access token is unusable at time now, with a
// safety margin so tokens about to lapse mid-request count as expired.
func (t *StoredToken) Expired(now time.Time, margin time.Duration) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !t.Expiry.After(now.Add(margin))
}

type Repo interface {
	// Upsert inserts or replaces the record for (UserID, Provider).
	Upsert(ctx context.Context, tok *StoredToken) error
	Get(ctx context.Context, userID, provider string) (*StoredToken, error)
	// Delete is idempotent: deleting a missing record is a no-op success.
	Delete(ctx context.Context, userID, provider string) error
	// CountByProvider reports how many users have a stored token for the
	// provider (dashboard stats).
	CountByProvider(ctx context.Context, provider string) (int, error)
}
