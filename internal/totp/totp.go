// Package totp implements TOTP second-factor provisioning and verification
// plus hashed single-use backup codes.
package totp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// BackupCodeCount is the number of backup codes minted per provisioning.
	BackupCodeCount = 10

	// backupCodeLength is the visible length of each code.
	backupCodeLength = 10
)

// Provision holds the freshly generated shared secret and the otpauth://
// provisioning URI. QRCodeURL carries the URI for clients that render their
// own QR image.
type Provision struct {
	SecretBase32 string `json:"secret"`
	OTPAuthURL   string `json:"otpauth_url"`
	QRCodeURL    string `json:"qr_code_url"`
}

// Manager generates secrets and verifies 6-digit time-based codes with a
// one-step clock-skew tolerance.
type Manager struct {
	issuer string
}

// NewManager creates a Manager. The issuer shows up in authenticator apps.
func NewManager(issuer string) *Manager {
	return &Manager{issuer: issuer}
}

// GenerateSecret creates a fresh shared secret for the account.
func (m *Manager) GenerateSecret(accountName string) (*Provision, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
		Period:      30,
		SecretSize:  32,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	return &Provision{
		SecretBase32: key.Secret(),
		OTPAuthURL:   key.URL(),
		QRCodeURL:    key.URL(),
	}, nil
}

// Verify checks a 6-digit code against the secret, allowing one 30-second
// step of clock skew in either direction.
func (m *Manager) Verify(code, secretBase32 string) bool {
	if code == "" || secretBase32 == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secretBase32, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes mints n backup codes, returning the plaintext codes
// (shown once) and their sha256 hashes (the only form persisted).
func GenerateBackupCodes(n int) (plain []string, hashes []string, err error) {
	plain = make([]string, 0, n)
	hashes = make([]string, 0, n)

	for i := 0; i < n; i++ {
		b := make([]byte, backupCodeLength)
		if _, err := rand.Read(b); err != nil {
			return nil, nil, fmt.Errorf("generate backup code: %w", err)
		}

		code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
		if len(code) > backupCodeLength {
			code = code[:backupCodeLength]
		}

		plain = append(plain, code)
		hashes = append(hashes, HashBackupCode(code))
	}
	return plain, hashes, nil
}

// HashBackupCode returns the hex sha256 of a backup code.
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
