package domain

import "strings"

// Identity is an authenticated caller address. Values are lowercase
// 0x-prefixed hex strings; the platform verifies them before an operation
// body runs, the engine only compares them.
type Identity string

// NormalizeIdentity lowercases an address so comparisons are byte-equal.
func NormalizeIdentity(addr string) Identity {
	return Identity(strings.ToLower(strings.TrimSpace(addr)))
}

// Zero reports whether the identity is unset.
func (id Identity) Zero() bool {
	return id == ""
}
