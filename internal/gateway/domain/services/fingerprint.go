// Package services holds pure domain algorithms that do not belong to any
// single entity: C1's fingerprint digest.
package services

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ngotraders/kopitra/internal/gateway/domain/entities"
)

// methodTag is the literal ASCII tag mixed into the fingerprint digest for
// each auth method, per spec.md's bit-exact composition requirement.
func methodTag(method entities.AuthMethod) string {
	switch method {
	case entities.AuthMethodPreSharedKey:
		return "pre_shared_key"
	default:
		return "account_session_key"
	}
}

// Fingerprint computes the collision-resistant, domain-separated digest of
// (auth_method, account, secret): sha256(method_tag || ':' || account ||
// ':' || secret), lowercase hex. This composition must be reproducible by
// external callers (the admin path submits a fingerprint computed
// independently), so it is a pure function with no injected randomness.
func Fingerprint(method entities.AuthMethod, account, secret string) string {
	h := sha256.New()
	h.Write([]byte(methodTag(method)))
	h.Write([]byte{':'})
	h.Write([]byte(account))
	h.Write([]byte{':'})
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}
