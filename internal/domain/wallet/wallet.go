// Package wallet implements the syntactic wallet address check used before
// any payment is accepted.
package wallet

import "strings"

// Address length bounds, inclusive.
const (
	MinAddressLength = 25
	MaxAddressLength = 34
)

// IsValidAddress reports whether s looks like a legacy or bech32 bitcoin
// address: 25 to 34 ASCII alphanumerics starting with "1", "3" or "bc1".
// It performs no checksum validation.
func IsValidAddress(s string) bool {
	if len(s) < MinAddressLength || len(s) > MaxAddressLength {
		return false
	}
	if s[0] != '1' && s[0] != '3' && !strings.HasPrefix(s, "bc1") {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}
