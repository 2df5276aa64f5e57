// Package pkce implements the Proof Key for Code Exchange primitives
// (RFC 7636): random code verifiers, S256 code challenges, and the random
// state values used for CSRF protection during the authorization round-trip.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// MinVerifierLength and MaxVerifierLength are the RFC 7636 bounds.
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// DefaultVerifierLength maximizes verifier entropy.
	DefaultVerifierLength = 128

	stateLength = 32 // bytes of entropy for state and nonce values
)

// unreserved is the 66-character set RFC 7636 permits in a code verifier.
const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateVerifier produces a random code verifier of the given length drawn
// uniformly from the unreserved set. An unavailable random source is returned
// as an error; callers must treat it as fatal, the flow cannot proceed
// securely without it.
func GenerateVerifier(length int) (string, error) {
	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", fmt.Errorf("verifier length must be between %d and %d, got %d", MinVerifierLength, MaxVerifierLength, length)
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	// Rejection sampling keeps the distribution uniform: accept only bytes
	// below the largest multiple of len(unreserved).
	limit := byte(256 - 256%len(unreserved)) // 198
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("pkce: random source unavailable: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, unreserved[int(b)%len(unreserved)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// unpadded base64url of the SHA-256 digest of its UTF-8 bytes.
func DeriveChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState creates a random base64url state token.
func GenerateState() (string, error) {
	return randomURLString(stateLength)
}

// GenerateNonce creates a random base64url nonce for ID-token replay
// protection.
func GenerateNonce() (string, error) {
	return randomURLString(stateLength)
}

func randomURLString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("pkce: random source unavailable: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
