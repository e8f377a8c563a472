package thesis

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the exact-match cache key for a post's text: lowercase hex SHA-256.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
