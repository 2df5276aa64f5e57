package mfa

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, options ...Option) *Service {
	t.Helper()
	opts := append([]Option{WithNowTime(func() time.Time { return testNow })}, options...)
	svc, err := NewService(Config{Issuer: "JobPath"},
		NewInMemoryFactorRepo(),
		NewInMemoryBackupCodeRepo(),
		NewInMemoryChallengeRepo(DefaultChallengeTTL, WithChallengeNowTime(func() time.Time { return testNow })),
		opts...,
	)
	require.NoError(t, err)
	return svc
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period: 30, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func enrollVerified(t *testing.T, svc *Service, userID string) *Enrollment {
	t.Helper()
	ctx := context.Background()
	enrollment, err := svc.Enroll(ctx, userID, userID+"@example.com")
	require.NoError(t, err)
	challengeID, err := svc.Challenge(ctx, userID, enrollment.FactorID)
	require.NoError(t, err)
	require.NoError(t, svc.VerifyEnrollment(ctx, userID, enrollment.FactorID, challengeID, codeAt(t, enrollment.Secret, testNow)))
	return enrollment
}

func TestEnroll(t *testing.T) {
	ctx := context.Background()

	t.Run("returns secret, provisioning URI and QR code", func(t *testing.T) {
		svc := newTestService(t)
		enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, enrollment.FactorID)
		require.NotEmpty(t, enrollment.Secret)
		require.True(t, strings.HasPrefix(enrollment.URI, "otpauth://totp/"))
		require.Contains(t, enrollment.URI, "JobPath")
		require.True(t, strings.HasPrefix(enrollment.QRCode, "data:image/png;base64,"))
	})

	t.Run("re-enrolling replaces a pending factor", func(t *testing.T) {
		svc := newTestService(t)
		first, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		second, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		require.NotEqual(t, first.FactorID, second.FactorID)
		require.NotEqual(t, first.Secret, second.Secret)
	})

	t.Run("enrolling over a verified factor fails", func(t *testing.T) {
		svc := newTestService(t)
		enrollVerified(t, svc, "user-1")
		_, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.ErrorIs(t, err, ErrAlreadyEnrolled)
	})
}

func TestVerifyEnrollment(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code activates the factor", func(t *testing.T) {
		svc := newTestService(t)
		enrollVerified(t, svc, "user-1")
		enrolled, err := svc.Enrolled(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, enrolled)
	})

	t.Run("code from the adjacent time step is accepted", func(t *testing.T) {
		svc := newTestService(t)
		enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		challengeID, err := svc.Challenge(ctx, "user-1", enrollment.FactorID)
		require.NoError(t, err)
		previousStep := codeAt(t, enrollment.Secret, testNow.Add(-30*time.Second))
		require.NoError(t, svc.VerifyEnrollment(ctx, "user-1", enrollment.FactorID, challengeID, previousStep))
	})

	t.Run("code from two steps away is rejected", func(t *testing.T) {
		svc := newTestService(t)
		enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		challengeID, err := svc.Challenge(ctx, "user-1", enrollment.FactorID)
		require.NoError(t, err)
		stale := codeAt(t, enrollment.Secret, testNow.Add(-90*time.Second))
		err = svc.VerifyEnrollment(ctx, "user-1", enrollment.FactorID, challengeID, stale)
		require.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("challenge is consumed even on a wrong code", func(t *testing.T) {
		svc := newTestService(t)
		enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		challengeID, err := svc.Challenge(ctx, "user-1", enrollment.FactorID)
		require.NoError(t, err)

		require.ErrorIs(t, svc.VerifyEnrollment(ctx, "user-1", enrollment.FactorID, challengeID, "000000"), ErrInvalidCode)

		// Replaying the consumed challenge with the right code still fails.
		valid := codeAt(t, enrollment.Secret, testNow)
		require.ErrorIs(t, svc.VerifyEnrollment(ctx, "user-1", enrollment.FactorID, challengeID, valid), ErrInvalidCode)
	})

	t.Run("another user's factor is rejected without detail", func(t *testing.T) {
		svc := newTestService(t)
		enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		challengeID, err := svc.Challenge(ctx, "user-1", enrollment.FactorID)
		require.NoError(t, err)
		err = svc.VerifyEnrollment(ctx, "user-2", enrollment.FactorID, challengeID, codeAt(t, enrollment.Secret, testNow))
		require.ErrorIs(t, err, ErrInvalidCode)
	})
}

func TestChallenge(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown factor reads as not enrolled", func(t *testing.T) {
		svc := newTestService(t)
		_, err := svc.Challenge(ctx, "user-1", "no-such-factor")
		require.ErrorIs(t, err, ErrNotEnrolled)
	})

	t.Run("another user's factor looks identical to an unknown one", func(t *testing.T) {
		svc := newTestService(t)
		enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		_, err = svc.Challenge(ctx, "user-2", enrollment.FactorID)
		require.ErrorIs(t, err, ErrNotEnrolled)
	})
}

func TestVerifyCode(t *testing.T) {
	ctx := context.Background()

	t.Run("valid login code passes", func(t *testing.T) {
		svc := newTestService(t)
		enrollment := enrollVerified(t, svc, "user-1")
		require.NoError(t, svc.VerifyCode(ctx, "user-1", codeAt(t, enrollment.Secret, testNow)))
	})

	t.Run("one user's code never verifies another user's factor", func(t *testing.T) {
		svc := newTestService(t)
		alice := enrollVerified(t, svc, "alice")
		enrollVerified(t, svc, "bob")
		err := svc.VerifyCode(ctx, "bob", codeAt(t, alice.Secret, testNow))
		require.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("pending factor does not satisfy login", func(t *testing.T) {
		svc := newTestService(t)
		enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
		require.NoError(t, err)
		err = svc.VerifyCode(ctx, "user-1", codeAt(t, enrollment.Secret, testNow))
		require.ErrorIs(t, err, ErrNotEnrolled)
	})

	t.Run("unenrolled user gets not enrolled", func(t *testing.T) {
		svc := newTestService(t)
		require.ErrorIs(t, svc.VerifyCode(ctx, "nobody", "123456"), ErrNotEnrolled)
	})
}

func TestBackupCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("generates ten distinct uppercase alphanumeric codes", func(t *testing.T) {
		svc := newTestService(t)
		enrollVerified(t, svc, "user-1")
		codes, err := svc.GenerateBackupCodes(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, codes, 10)

		seen := make(map[string]struct{})
		for _, code := range codes {
			require.Len(t, code, 10)
			for _, r := range code {
				require.Contains(t, backupCodeCharset, string(r))
			}
			_, dup := seen[code]
			require.False(t, dup, "codes must be distinct")
			seen[code] = struct{}{}
		}
	})

	t.Run("each code redeems exactly once", func(t *testing.T) {
		svc := newTestService(t)
		enrollVerified(t, svc, "user-1")
		codes, err := svc.GenerateBackupCodes(ctx, "user-1")
		require.NoError(t, err)

		require.NoError(t, svc.VerifyBackupCode(ctx, "user-1", codes[0]))
		require.ErrorIs(t, svc.VerifyBackupCode(ctx, "user-1", codes[0]), ErrInvalidCode)
		require.NoError(t, svc.VerifyBackupCode(ctx, "user-1", codes[1]))
	})

	t.Run("regenerating invalidates the previous batch", func(t *testing.T) {
		svc := newTestService(t)
		enrollVerified(t, svc, "user-1")
		oldCodes, err := svc.GenerateBackupCodes(ctx, "user-1")
		require.NoError(t, err)
		newCodes, err := svc.GenerateBackupCodes(ctx, "user-1")
		require.NoError(t, err)

		require.ErrorIs(t, svc.VerifyBackupCode(ctx, "user-1", oldCodes[0]), ErrInvalidCode)
		require.NoError(t, svc.VerifyBackupCode(ctx, "user-1", newCodes[0]))
	})

	t.Run("requires a verified factor", func(t *testing.T) {
		svc := newTestService(t)
		_, err := svc.GenerateBackupCodes(ctx, "user-1")
		require.ErrorIs(t, err, ErrNotEnrolled)
	})

	t.Run("attempts are rate limited", func(t *testing.T) {
		limiter := &fakeLimiter{allowed: true}
		svc := newTestService(t, WithRateLimiter(limiter))
		enrollVerified(t, svc, "user-1")
		codes, err := svc.GenerateBackupCodes(ctx, "user-1")
		require.NoError(t, err)

		limiter.allowed = false
		require.ErrorIs(t, svc.VerifyBackupCode(ctx, "user-1", codes[0]), ErrTooManyAttempts)

		limiter.allowed = true
		require.NoError(t, svc.VerifyBackupCode(ctx, "user-1", codes[0]))
	})
}

func TestRandomBackupCode(t *testing.T) {
	counts := make(map[rune]int)
	for i := 0; i < 200; i++ {
		code, err := randomBackupCode()
		require.NoError(t, err)
		require.Len(t, code, backupCodeLength)
		for _, r := range code {
			require.Contains(t, backupCodeCharset, string(r))
			counts[r]++
		}
	}
	// 2000 uniform draws over 36 symbols; every symbol should show up.
	require.Len(t, counts, len(backupCodeCharset))
}

type fakeLimiter struct {
	allowed bool
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	return f.allowed, nil
}

func TestUnenroll(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the factor and backup codes", func(t *testing.T) {
		svc := newTestService(t)
		enrollment := enrollVerified(t, svc, "user-1")
		codes, err := svc.GenerateBackupCodes(ctx, "user-1")
		require.NoError(t, err)

		require.NoError(t, svc.Unenroll(ctx, "user-1", enrollment.FactorID))

		enrolled, err := svc.Enrolled(ctx, "user-1")
		require.NoError(t, err)
		require.False(t, enrolled)
		require.ErrorIs(t, svc.VerifyCode(ctx, "user-1", codeAt(t, enrollment.Secret, testNow)), ErrNotEnrolled)
		require.ErrorIs(t, svc.VerifyBackupCode(ctx, "user-1", codes[0]), ErrInvalidCode)
	})

	t.Run("cannot unenroll another user's factor", func(t *testing.T) {
		svc := newTestService(t)
		enrollment := enrollVerified(t, svc, "user-1")
		require.ErrorIs(t, svc.Unenroll(ctx, "user-2", enrollment.FactorID), ErrNotEnrolled)
	})
}

func TestChallengeExpiry(t *testing.T) {
	ctx := context.Background()

	clock := testNow
	now := func() time.Time { return clock }
	svc, err := NewService(Config{Issuer: "JobPath"},
		NewInMemoryFactorRepo(),
		NewInMemoryBackupCodeRepo(),
		NewInMemoryChallengeRepo(DefaultChallengeTTL, WithChallengeNowTime(now)),
		WithNowTime(now),
	)
	require.NoError(t, err)

	enrollment, err := svc.Enroll(ctx, "user-1", "user-1@example.com")
	require.NoError(t, err)
	challengeID, err := svc.Challenge(ctx, "user-1", enrollment.FactorID)
	require.NoError(t, err)

	clock = clock.Add(DefaultChallengeTTL + time.Second)
	err = svc.VerifyEnrollment(ctx, "user-1", enrollment.FactorID, challengeID, codeAt(t, enrollment.Secret, clock))
	require.ErrorIs(t, err, ErrInvalidCode)
}
