package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Entropy sizes in raw bytes, before base64url encoding.
const (
	TokenSize256 = 32 // 256 bits, 43 encoded chars
	TokenSize512 = 64 // 512 bits, 86 encoded chars; refresh tokens use this
)

// GenerateToken returns size random bytes as an unpadded base64url string.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read entropy: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// Stored in place of the raw token so a database leak does not leak usable
// credentials; lookup works by fingerprinting the presented value.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
