// Package rpcstore holds the operational side data the HTTP layer leans on:
// fixed-window rate-limit counters, the login-attempt audit trail, and the
// aggregate numbers for the admin dashboard. A Redis-backed implementation
// is used in production and a process-local one in tests and single-node
// deployments; counters are fixed-window and a little imprecise across
// restarts, which is acceptable for this service.
package rpcstore

import (
	"context"
	"time"
)

// LoginAttempt is one authentication attempt, recorded whether it succeeded
// or not.
type LoginAttempt struct {
	UserID    string    `json:"user_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	MFAUsed   bool      `json:"mfa_used"`
	At        time.Time `json:"at"`
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	UsersSeen       int `json:"users_seen"`
	LoginAttempts   int `json:"login_attempts"`
	FailedAttempts  int `json:"failed_attempts"`
	LinkedCalendars int `json:"linked_calendars"`
}

// TokenCounter supplies the linked-calendar count for the dashboard.
// Satisfied by the oauth token repository.
type TokenCounter interface {
	CountByProvider(ctx context.Context, provider string) (int, error)
}

// Store is the operational data contract.
type Store interface {
	// CheckRateLimit counts this call against the key's fixed window and
	// reports whether it is still within max.
	CheckRateLimit(ctx context.Context, key string, max int, window time.Duration) (bool, error)
	RecordLoginAttempt(ctx context.Context, attempt LoginAttempt) error
	// RecentLoginAttempts returns the user's attempts, newest first.
	RecentLoginAttempts(ctx context.Context, userID string, limit int) ([]LoginAttempt, error)
	AdminDashboardStats(ctx context.Context) (Stats, error)
}
