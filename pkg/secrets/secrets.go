package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// claimCodeBytes is the entropy of a generated claim code. 32 bytes (256 bits)
// keeps guessing infeasible even without the attempt limiter in front.
const claimCodeBytes = 32

// GenerateClaimCode creates a cryptographically secure one-time claim code,
// rendered as an opaque URL-safe token.
func GenerateClaimCode() (string, error) {
	buf := make([]byte, claimCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate claim code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Equal compares two codes in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
