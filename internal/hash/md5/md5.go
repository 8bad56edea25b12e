// Package md5 provides MD5 hashing utilities.
package md5

import (
	"crypto/md5"
	"encoding/hex"
)

// Hasher implements pje.Hasher using MD5. Identity hashes are MD5 for
// compatibility with digests already persisted by earlier versions of the
// monitor; they are dedup keys, not security material.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
