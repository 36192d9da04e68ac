package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	resetTokenBytes = 32
	ResetTokenTTL   = 10 * time.Minute
)

// ResetToken is a freshly minted password-reset secret. Plain goes to the
// account owner once; only Hash and ExpiresAt are stored.
type ResetToken struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

func NewResetToken(now time.Time) (ResetToken, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, fmt.Errorf("auth: generate reset token: %w", err)
	}
	plain := hex.EncodeToString(buf)
	return ResetToken{
		Plain:     plain,
		Hash:      HashResetToken(plain),
		ExpiresAt: now.Add(ResetTokenTTL),
	}, nil
}

// HashResetToken returns the hex SHA-256 digest of a plaintext reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
