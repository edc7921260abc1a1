// Package fingerprint derives cache keys from extracted document text.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprinter computes a deterministic digest of text.
type Fingerprinter interface {
	Fingerprint(text string) (string, error)
}

// SHA256 hex-encodes the SHA-256 digest of the UTF-8 text.
type SHA256 struct{}

// Fingerprint returns a 64 character lowercase hex digest.
func (SHA256) Fingerprint(text string) (string, error) {
	hasher := sha256.New()
	if _, err := hasher.Write([]byte(text)); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
