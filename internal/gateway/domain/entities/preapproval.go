package entities

import "time"

// PreapprovalRecord arms a credential so the next matching create_session
// call comes up already Authenticated. It is consumed (removed) on the
// next create_session that matches the fingerprint, whether or not it has
// expired by then.
type PreapprovalRecord struct {
	Fingerprint string
	ApprovedBy  string
	ExpiresAt   *time.Time
}

// Expired reports whether the record's expiry has passed as of now.
// A nil ExpiresAt never expires.
func (p PreapprovalRecord) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}
