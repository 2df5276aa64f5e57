// Package flowrepo stores the ephemeral per-attempt state of an OAuth
// authorization round-trip: the PKCE code verifier, the nonce, and the user
// who initiated the flow, keyed by the anti-CSRF state token. Entries are
// single-use and expire after a short TTL to bound the CSRF exposure window.
package flowrepo

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a pending authorization attempt stays valid.
const DefaultTTL = 10 * time.Minute

var ErrNotFound = errors.New("flow state not found")

// FlowState is the transient record for one authorization attempt.
type FlowState struct {
	State        string // anti-CSRF token, also the storage key
	UserID       string
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	// Put stores a flow state, overwriting any previous attempt with the
	// same key.
	Put(ctx context.Context, fs *FlowState) error
	// Take retrieves and deletes a flow state in one step, guaranteeing
	// single-use semantics. Missing or expired states return ErrNotFound.
	Take(ctx context.Context, state string) (*FlowState, error)
}
