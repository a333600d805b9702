package auth

import "crypto/subtle"

// ConstantTimeEqual compares two secrets in time independent of where
// they first differ (spec §8 law "auth constant-time"). Inputs of
// unequal length are rejected after a dummy comparison of a against a
// zero buffer of its own length.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		// Still run a comparison against a same-length buffer so the
		// function's running time does not depend on a or b's length
		// relationship, only on their (here fixed) sizes.
		dummy := make([]byte, len(a))
		subtle.ConstantTimeCompare([]byte(a), dummy)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
