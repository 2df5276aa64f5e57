// Package mfa implements TOTP second-factor enrollment and verification
// with bcrypt-hashed single-use backup codes.
package mfa

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/jobpath/jobpath-server/internal/errors"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20
	totpSkew       = 1

	backupCodeLength  = 10
	backupCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	qrImageSize = 200
)

var (
	// ErrAlreadyEnrolled means a verified factor exists and must be removed
	// before enrolling again.
	ErrAlreadyEnrolled = apperrors.New(apperrors.KindValidation, "a second factor is already enrolled")
	// ErrNotEnrolled means no verified factor exists for the user.
	ErrNotEnrolled = apperrors.New(apperrors.KindNotFound, "no second factor enrolled")
	// ErrInvalidCode covers every verification failure: wrong code, expired
	// or replayed challenge, unknown factor. One message, no detail.
	ErrInvalidCode = apperrors.New(apperrors.KindVerification, "invalid code")
	// ErrTooManyAttempts is returned when backup-code verification is being
	// hammered.
	ErrTooManyAttempts = apperrors.New(apperrors.KindRateLimit, "too many attempts")
)

// RateLimiter gates backup-code verification attempts. Satisfied by the
// rpcstore implementations.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

// Enrollment is everything the client needs to finish setting up an
// authenticator app.
type Enrollment struct {
	FactorID string
	Secret   string
	URI      string
	QRCode   string // data:image/png;base64 URL
}

// Config carries the MFA policy knobs.
type Config struct {
	Issuer          string
	BackupCodeCount int
	BcryptCost      int
	AttemptLimit    int
	AttemptWindow   time.Duration
}

// Service owns the factor lifecycle: enroll, challenge, verify, unenroll.
type Service struct {
	cfg        Config
	factors    FactorRepo
	backups    BackupCodeRepo
	challenges ChallengeRepo
	limiter    RateLimiter
	nowTime    func() time.Time
}

type Option func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithRateLimiter gates VerifyBackupCode attempts per user.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

func NewService(cfg Config, factors FactorRepo, backups BackupCodeRepo, challenges ChallengeRepo, options ...Option) (*Service, error) {
	if cfg.Issuer == "" {
		return nil, apperrors.New(apperrors.KindConfig, "mfa issuer is not configured")
	}
	if cfg.BackupCodeCount <= 0 {
		cfg.BackupCodeCount = 10
	}
	if cfg.BcryptCost < bcrypt.DefaultCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.AttemptLimit <= 0 {
		cfg.AttemptLimit = 10
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = time.Minute
	}

	s := &Service{
		cfg:        cfg,
		factors:    factors,
		backups:    backups,
		challenges: challenges,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Enroll creates a pending TOTP factor and returns the provisioning secret,
// otpauth URI and a QR code for authenticator apps. An existing pending
// factor is replaced; a verified one must be unenrolled first.
func (s *Service) Enroll(ctx context.Context, userID, accountName string) (*Enrollment, error) {
	if userID == "" || accountName == "" {
		return nil, errors.New("[Enroll] user ID and account name are required")
	}

	existing, err := s.factors.GetByUser(ctx, userID, FactorTypeTOTP)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "[Enroll] factor lookup")
	}
	if existing != nil {
		if existing.Status == FactorStatusVerified {
			return nil, ErrAlreadyEnrolled
		}
		if err := s.factors.Delete(ctx, existing.ID); err != nil {
			return nil, errors.Wrap(err, "[Enroll] replacing pending factor")
		}
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Enroll] totp generation")
	}

	factor := &Factor{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      FactorTypeTOTP,
		Secret:    key.Secret(),
		Status:    FactorStatusPending,
		CreatedAt: s.nowTime(),
	}
	if err := s.factors.Upsert(ctx, factor); err != nil {
		return nil, errors.Wrap(err, "[Enroll] storing factor")
	}

	qrCode, err := qrDataURL(key)
	if err != nil {
		return nil, errors.Wrap(err, "[Enroll] qr encoding")
	}

	log.Info().Str("user_id", userID).Msg("totp factor enrolled, pending verification")
	return &Enrollment{
		FactorID: factor.ID,
		Secret:   key.Secret(),
		URI:      key.URL(),
		QRCode:   qrCode,
	}, nil
}

// Challenge issues a single-use challenge for one of the caller's own
// factors. The challenge expires after the repository TTL and is consumed on
// first verification attempt, success or failure.
func (s *Service) Challenge(ctx context.Context, userID, factorID string) (string, error) {
	factor, err := s.factors.Get(ctx, factorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotEnrolled
		}
		return "", errors.Wrap(err, "[Challenge] factor lookup")
	}
	// Same answer as an unknown factor, so other users' factor IDs cannot
	// be probed.
	if factor.UserID != userID {
		return "", ErrNotEnrolled
	}

	challenge := &Challenge{
		ID:        uuid.NewString(),
		FactorID:  factorID,
		CreatedAt: s.nowTime(),
	}
	if err := s.challenges.Put(ctx, challenge); err != nil {
		return "", errors.Wrap(err, "[Challenge] storing challenge")
	}
	return challenge.ID, nil
}

// VerifyEnrollment proves possession of the enrolled secret and activates
// the factor. The challenge is consumed whether or not the code matches.
func (s *Service) VerifyEnrollment(ctx context.Context, userID, factorID, challengeID, code string) error {
	challenge, err := s.challenges.Take(ctx, challengeID)
	if err != nil || challenge.FactorID != factorID {
		return ErrInvalidCode
	}

	factor, err := s.factors.Get(ctx, factorID)
	if err != nil || factor.UserID != userID {
		return ErrInvalidCode
	}

	if !s.validateTOTP(code, factor.Secret) {
		return ErrInvalidCode
	}

	factor.Status = FactorStatusVerified
	factor.VerifiedAt = s.nowTime()
	if err := s.factors.Upsert(ctx, factor); err != nil {
		return errors.Wrap(err, "[VerifyEnrollment] updating factor")
	}

	log.Info().Str("user_id", userID).Msg("totp factor verified")
	return nil
}

// VerifyCode checks a login-time TOTP code against the user's verified
// factor.
func (s *Service) VerifyCode(ctx context.Context, userID, code string) error {
	factor, err := s.factors.GetByUser(ctx, userID, FactorTypeTOTP)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotEnrolled
		}
		return errors.Wrap(err, "[VerifyCode] factor lookup")
	}
	if factor.Status != FactorStatusVerified {
		return ErrNotEnrolled
	}
	if !s.validateTOTP(code, factor.Secret) {
		return ErrInvalidCode
	}
	return nil
}

// GenerateBackupCodes mints a fresh batch of recovery codes, replacing any
// previous batch. The plaintext codes are returned here and never again.
func (s *Service) GenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	factor, err := s.factors.GetByUser(ctx, userID, FactorTypeTOTP)
	if err != nil || factor.Status != FactorStatusVerified {
		return nil, ErrNotEnrolled
	}

	now := s.nowTime()
	plaintexts := make([]string, 0, s.cfg.BackupCodeCount)
	seen := make(map[string]struct{}, s.cfg.BackupCodeCount)
	stored := make([]*BackupCode, 0, s.cfg.BackupCodeCount)

	for len(plaintexts) < s.cfg.BackupCodeCount {
		code, err := randomBackupCode()
		if err != nil {
			return nil, errors.Wrap(err, "[GenerateBackupCodes] code generation")
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
		if err != nil {
			return nil, errors.Wrap(err, "[GenerateBackupCodes] hashing")
		}
		plaintexts = append(plaintexts, code)
		stored = append(stored, &BackupCode{
			ID:        uuid.NewString(),
			UserID:    userID,
			CodeHash:  hash,
			CreatedAt: now,
		})
	}

	if err := s.backups.Replace(ctx, userID, stored); err != nil {
		return nil, errors.Wrap(err, "[GenerateBackupCodes] storing codes")
	}

	log.Info().Str("user_id", userID).Int("count", len(plaintexts)).Msg("backup codes regenerated")
	return plaintexts, nil
}

// VerifyBackupCode redeems a recovery code. Each code works exactly once;
// the attempt is rate limited per user when a limiter is configured.
func (s *Service) VerifyBackupCode(ctx context.Context, userID, code string) error {
	if s.limiter != nil {
		allowed, err := s.limiter.CheckRateLimit(ctx, "mfa_backup:"+userID, s.cfg.AttemptLimit, s.cfg.AttemptWindow)
		if err != nil {
			// Fail open: a rate-limit store outage must not lock users out.
			log.Warn().Err(err).Msg("backup-code rate limit check failed")
		} else if !allowed {
			return ErrTooManyAttempts
		}
	}

	unused, err := s.backups.ListUnused(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "[VerifyBackupCode] listing codes")
	}

	for _, candidate := range unused {
		if bcrypt.CompareHashAndPassword(candidate.CodeHash, []byte(code)) == nil {
			if err := s.backups.MarkUsed(ctx, candidate.ID, s.nowTime()); err != nil {
				return errors.Wrap(err, "[VerifyBackupCode] marking code used")
			}
			log.Info().Str("user_id", userID).Msg("backup code redeemed")
			return nil
		}
	}
	return ErrInvalidCode
}

// Unenroll removes the factor and every backup code for the user.
func (s *Service) Unenroll(ctx context.Context, userID, factorID string) error {
	factor, err := s.factors.Get(ctx, factorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotEnrolled
		}
		return errors.Wrap(err, "[Unenroll] factor lookup")
	}
	if factor.UserID != userID {
		return ErrNotEnrolled
	}

	if err := s.factors.Delete(ctx, factorID); err != nil {
		return errors.Wrap(err, "[Unenroll] deleting factor")
	}
	if err := s.backups.DeleteByUser(ctx, userID); err != nil {
		return errors.Wrap(err, "[Unenroll] deleting backup codes")
	}

	log.Info().Str("user_id", userID).Msg("second factor removed")
	return nil
}

// Enrolled reports whether the user has a verified factor.
func (s *Service) Enrolled(ctx context.Context, userID string) (bool, error) {
	factor, err := s.factors.GetByUser(ctx, userID, FactorTypeTOTP)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Enrolled] factor lookup")
	}
	return factor.Status == FactorStatusVerified, nil
}

func (s *Service) validateTOTP(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, s.nowTime(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

func randomBackupCode() (string, error) {
	out := make([]byte, 0, backupCodeLength)
	buf := make([]byte, backupCodeLength)
	// Rejection sampling keeps the distribution uniform: accept only bytes
	// below the largest multiple of len(backupCodeCharset).
	limit := byte(256 - 256%len(backupCodeCharset)) // 252
	for len(out) < backupCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, backupCodeCharset[int(b)%len(backupCodeCharset)])
			if len(out) == backupCodeLength {
				break
			}
		}
	}
	return string(out), nil
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
