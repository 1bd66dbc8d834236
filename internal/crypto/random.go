package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// StateTokenBytes is the entropy of a generated state token (256 bits).
const StateTokenBytes = 32

// GenerateSecureToken creates a cryptographically secure random token.
// The result is base64 raw URL-encoded, so it can be placed in a query
// string without escaping.
func GenerateSecureToken() (string, error) {
	return generateToken(StateTokenBytes)
}

func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
