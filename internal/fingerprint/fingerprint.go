// Package fingerprint derives the content identity used for deduplication.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Compute returns the lowercase hex SHA-256 of text's UTF-8 bytes.
func Compute(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
