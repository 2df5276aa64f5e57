package mfa

import (
	"context"
	"sync"
	"time"
)

// DefaultChallengeTTL bounds how long an issued challenge stays redeemable.
const DefaultChallengeTTL = 5 * time.Minute

// InMemoryFactorRepo keeps factors in a process-local map.
type InMemoryFactorRepo struct {
	mutex   sync.RWMutex
	factors map[string]Factor
}

func NewInMemoryFactorRepo() *InMemoryFactorRepo {
	return &InMemoryFactorRepo{factors: make(map[string]Factor)}
}

func (r *InMemoryFactorRepo) Upsert(_ context.Context, factor *Factor) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.factors[factor.ID] = *factor
	return nil
}

func (r *InMemoryFactorRepo) Get(_ context.Context, factorID string) (*Factor, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	factor, ok := r.factors[factorID]
	if !ok {
		return nil, ErrNotFound
	}
	factorCopy := factor
	return &factorCopy, nil
}

func (r *InMemoryFactorRepo) GetByUser(_ context.Context, userID, factorType string) (*Factor, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, factor := range r.factors {
		if factor.UserID == userID && factor.Type == factorType {
			factorCopy := factor
			return &factorCopy, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryFactorRepo) Delete(_ context.Context, factorID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.factors, factorID)
	return nil
}

// InMemoryBackupCodeRepo keeps backup codes in a process-local map keyed by
// user.
type InMemoryBackupCodeRepo struct {
	mutex sync.RWMutex
	codes map[string][]BackupCode
}

func NewInMemoryBackupCodeRepo() *InMemoryBackupCodeRepo {
	return &InMemoryBackupCodeRepo{codes: make(map[string][]BackupCode)}
}

func (r *InMemoryBackupCodeRepo) Replace(_ context.Context, userID string, codes []*BackupCode) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	stored := make([]BackupCode, 0, len(codes))
	for _, code := range codes {
		stored = append(stored, *code)
	}
	r.codes[userID] = stored
	return nil
}

func (r *InMemoryBackupCodeRepo) ListUnused(_ context.Context, userID string) ([]*BackupCode, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var unused []*BackupCode
	for _, code := range r.codes[userID] {
		if code.Used {
			continue
		}
		codeCopy := code
		unused = append(unused, &codeCopy)
	}
	return unused, nil
}

func (r *InMemoryBackupCodeRepo) MarkUsed(_ context.Context, codeID string, usedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for userID, codes := range r.codes {
		for i := range codes {
			if codes[i].ID == codeID {
				codes[i].Used = true
				codes[i].UsedAt = usedAt
				r.codes[userID] = codes
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *InMemoryBackupCodeRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.codes, userID)
	return nil
}

// InMemoryChallengeRepo keeps challenges in a process-local map with a TTL
// enforced on Take.
type InMemoryChallengeRepo struct {
	mutex      sync.Mutex
	challenges map[string]Challenge
	ttl        time.Duration
	nowTime    func() time.Time
}

type InMemoryChallengeOption func(*InMemoryChallengeRepo)

// WithChallengeNowTime sets the now time function (primarily for testing)
func WithChallengeNowTime(nowFunc func() time.Time) InMemoryChallengeOption {
	return func(r *InMemoryChallengeRepo) {
		r.nowTime = nowFunc
	}
}

func NewInMemoryChallengeRepo(ttl time.Duration, options ...InMemoryChallengeOption) *InMemoryChallengeRepo {
	repo := &InMemoryChallengeRepo{
		challenges: make(map[string]Challenge),
		ttl:        ttl,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(repo)
	}
	return repo
}

func (r *InMemoryChallengeRepo) Put(_ context.Context, challenge *Challenge) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.nowTime()
	for id, existing := range r.challenges {
		if now.Sub(existing.CreatedAt) > r.ttl {
			delete(r.challenges, id)
		}
	}

	r.challenges[challenge.ID] = *challenge
	return nil
}

func (r *InMemoryChallengeRepo) Take(_ context.Context, challengeID string) (*Challenge, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	challenge, ok := r.challenges[challengeID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.challenges, challengeID)

	if r.nowTime().Sub(challenge.CreatedAt) > r.ttl {
		return nil, ErrNotFound
	}
	return &challenge, nil
}
