package session

import "crypto/subtle"

// Partner is what the server-side CONNECT handler looks up about the
// peer identified by PI_03.
type Partner struct {
	Password    []byte
	MaxSessions int
	Enabled     bool
}

// PartnerLookup is the external collaborator the core calls into; it
// must be safe to call concurrently.
// Implementations typically wrap a secrets store keyed by partner id.
type PartnerLookup func(id string) (Partner, bool)

// CheckPassword compares candidate against the partner's password in
// constant time.
func CheckPassword(p Partner, candidate []byte) bool {
	if !p.Enabled {
		return false
	}
	if len(p.Password) != len(candidate) {
		// Still run a constant-time compare against a same-length
		// dummy so a mismatched length doesn't leak via timing.
		dummy := make([]byte, len(candidate))
		subtle.ConstantTimeCompare(dummy, candidate)
		return false
	}
	return subtle.ConstantTimeCompare(p.Password, candidate) == 1
}
