package config

import "golang.org/x/crypto/bcrypt"

type MFAConfig interface {
	GetMFAIssuer() string
	GetBackupCodeCount() int
	GetBackupCodeCost() int
}

type MFA struct{}

var _ MFAConfig = MFA{}

func (MFA) GetMFAIssuer() string {
	return GetEnv("MFA_ISSUER", "JobPath")
}

func (MFA) GetBackupCodeCount() int {
	return 10
}

// GetBackupCodeCost is the bcrypt work factor for stored backup codes.
func (MFA) GetBackupCodeCost() int {
	return bcrypt.DefaultCost // 10
}
