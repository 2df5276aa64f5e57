package mfa

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// FactorTypeTOTP is the only factor type currently supported.
const FactorTypeTOTP = "totp"

// Factor statuses. A pending factor has been enrolled but not yet proven
// with a valid code; only verified factors satisfy login verification.
const (
	FactorStatusPending  = "pending"
	FactorStatusVerified = "verified"
)

var ErrNotFound = errors.New("not found")

// Factor is a user's second-factor enrollment. Secret is the base32 TOTP
// seed and must never leave the server after enrollment completes.
type Factor struct {
	ID         string
	UserID     string
	Type       string
	Secret     string
	Status     string
	CreatedAt  time.Time
	VerifiedAt time.Time
}

// BackupCode stores only the bcrypt hash of a recovery code. Plaintext
// codes exist once, in the GenerateBackupCodes response.
type BackupCode struct {
	ID        string
	UserID    string
	CodeHash  []byte
	Used      bool
	UsedAt    time.Time
	CreatedAt time.Time
}

// Challenge is a single-use verification attempt bound to a factor.
type Challenge struct {
	ID        string
	FactorID  string
	CreatedAt time.Time
}

// FactorRepo persists factors, at most one per (user, type).
type FactorRepo interface {
	Upsert(ctx context.Context, factor *Factor) error
	Get(ctx context.Context, factorID string) (*Factor, error)
	GetByUser(ctx context.Context, userID, factorType string) (*Factor, error)
	Delete(ctx context.Context, factorID string) error
}

// BackupCodeRepo persists a user's current batch of recovery codes.
type BackupCodeRepo interface {
	Replace(ctx context.Context, userID string, codes []*BackupCode) error
	ListUnused(ctx context.Context, userID string) ([]*BackupCode, error)
	MarkUsed(ctx context.Context, codeID string, usedAt time.Time) error
	DeleteByUser(ctx context.Context, userID string) error
}

// ChallengeRepo persists pending challenges. Take removes and returns a
// challenge, so each one can be consumed at most once.
type ChallengeRepo interface {
	Put(ctx context.Context, challenge *Challenge) error
	Take(ctx context.Context, challengeID string) (*Challenge, error)
}
