// Package id generates short random identifiers used as per-request
// IDs.
package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a 16-byte random hex identifier, used as a request ID.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "request-fallback-id"
	}
	return hex.EncodeToString(b[:])
}
