// Package token generates and validates booking confirmation tokens.
//
// A token is the only credential in the anonymous email flow: possession
// equals authorization. Tokens are never revoked; the status gate on the
// confirmation row is the idempotency barrier, and expiry only blocks
// the email links.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// DefaultExpiryDays is how long a freshly issued token stays usable.
const DefaultExpiryDays = 7

// Canonical tokens are 32 random bytes hex-encoded. Tokens minted by an
// earlier issuer used base64url without padding; both stay accepted on
// the read path.
var (
	hexPattern       = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	base64URLPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)
)

// Generate returns a new confirmation token: 64 lowercase hex characters
// from a CSPRNG.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsValidFormat reports whether raw is shaped like a token this system
// ever issued. It is a cheap pre-check before the database lookup, not
// an authorization decision.
func IsValidFormat(raw string) bool {
	return hexPattern.MatchString(raw) || base64URLPattern.MatchString(raw)
}

// ExpiryFrom returns the expiry instant for a token issued at the given
// time, with the configured lifetime in days.
func ExpiryFrom(issuedAt time.Time, days int) time.Time {
	if days < 1 {
		days = DefaultExpiryDays
	}
	return issuedAt.Add(time.Duration(days) * 24 * time.Hour)
}
