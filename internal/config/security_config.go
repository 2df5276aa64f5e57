package config

import "time"

type SecurityConfig interface {
	GetJWTSigningKey() []byte
	GetTokenRefreshMargin() time.Duration
	GetFlowStateTTL() time.Duration
	GetRateLimitMax() int
	GetRateLimitWindow() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetJWTSigningKey() []byte {
	return []byte(GetEnv("JWT_SIGNING_KEY", ""))
}

// GetTokenRefreshMargin is the safety margin before expiry at which a stored
// OAuth token is treated as already expired and refreshed.
func (Security) GetTokenRefreshMargin() time.Duration {
	return 30 * time.Second
}

// GetFlowStateTTL bounds the CSRF exposure window of a pending
// authorization attempt.
func (Security) GetFlowStateTTL() time.Duration {
	return 10 * time.Minute
}

func (Security) GetRateLimitMax() int {
	return 60 // requests per window per client IP
}

func (Security) GetRateLimitWindow() time.Duration {
	return time.Minute
}
