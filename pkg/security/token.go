package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// DefaultTokenBytes is the entropy used for checkout context tokens.
const DefaultTokenBytes = 24

// NewOpaqueToken returns a URL-safe random token built from n bytes of
// entropy. n below 16 is raised to 16.
func NewOpaqueToken(n int) (string, error) {
	if n < 16 {
		n = 16
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenLooksValid reports whether value could have come from NewOpaqueToken.
func TokenLooksValid(value string) bool {
	if len(value) < 22 || len(value) > 128 {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(value)
	return err == nil
}

// EqualTokens compares two secrets in constant time.
func EqualTokens(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
