package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minAPITokenLength = 16
	apiTokenBytes     = 24
)

// GenerateAPIToken returns a random hex token suitable for machine clients.
func GenerateAPIToken() (string, error) {
	buf := make([]byte, apiTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ValidateAPIToken checks minimal token requirements.
func ValidateAPIToken(token string) error {
	if len(strings.TrimSpace(token)) < minAPITokenLength {
		return fmt.Errorf("api token must be at least %d characters", minAPITokenLength)
	}
	return nil
}

// HashAPIToken hashes one plaintext API token for configuration storage.
func HashAPIToken(token string) (string, error) {
	if err := ValidateAPIToken(token); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyAPIToken verifies a plaintext token against a bcrypt hash.
func VerifyAPIToken(tokenHash, candidate string) bool {
	if strings.TrimSpace(tokenHash) == "" || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(candidate)) == nil
}
