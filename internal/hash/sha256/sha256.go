// Package sha256 names cache objects by the SHA-256 digest of their URL.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher. A positive Length truncates the hex digest.
type Hasher struct {
	Length int
}

// New returns a hasher producing full 64-character digests.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	out := hex.EncodeToString(sum[:])
	if h.Length > 0 && h.Length < len(out) {
		out = out[:h.Length]
	}
	return out, nil
}
