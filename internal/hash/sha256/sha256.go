// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept by Fingerprint.
const fingerprintLen = 12

// Hasher hashes byte payloads with SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns a short, stable identifier for a secret such as a
// session cookie, safe to put in logs. The empty string maps to "".
func (h *Hasher) Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	return h.Hash([]byte(secret))[:fingerprintLen]
}
