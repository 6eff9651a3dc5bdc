// Package signer implements canonicalization and HMAC-SHA256
// authentication of transformation parameter sets.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/dunamismax/imagekit/internal/domain"
)

// Result is the outcome of Verify.
type Result int

const (
	Ok Result = iota
	MissingSig
	Invalid
	Expired
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case MissingSig:
		return "missing_sig"
	case Invalid:
		return "invalid"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Canonicalize returns the sorted "key=value"-joined parameter string
// that Sign and Verify authenticate over, with sig omitted.
func Canonicalize(params domain.Params) string {
	return params.WithoutSig().Canonical()
}

// Sign computes the hex-encoded HMAC-SHA256 of params' canonical string
// under secret. sig, if present in params, is excluded from the input.
func Sign(params domain.Params, secret []byte) string {
	return signCanonical(params.WithoutSig().Canonical(), secret)
}

func signCanonical(canonical string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks params' signature against secret as of now (Unix
// seconds): missing signature first, then the HMAC comparison, then
// expiry, so a forged signature is rejected before its (attacker
// controlled) expiry claim is even consulted.
func Verify(params domain.Params, secret []byte, now int64) Result {
	sig := params.Sig()
	if sig == "" {
		return MissingSig
	}

	expected := Sign(params, secret)
	if !hmacEqual(expected, sig) {
		return Invalid
	}

	if t, present, err := params.Int64("t"); present {
		if err != nil {
			return Invalid
		}
		if t <= now {
			return Expired
		}
	}

	return Ok
}

// hmacEqual compares two hex-encoded MACs in constant time, avoiding
// the short-circuit byte comparison a plain == would perform.
// hmac.Equal is the standard library's constant-time comparator for
// exactly this purpose.
func hmacEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
