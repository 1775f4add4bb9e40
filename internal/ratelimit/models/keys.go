package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// KeyPrefix namespaces rate-limit counters in a shared store.
const KeyPrefix = "ratelimit:"

// maxKeySegment bounds each caller-supplied part of a counter key.
const maxKeySegment = 128

// Key builds the counter key ratelimit:{identifier}:{clientKey}. Identifiers
// are caller-supplied and may themselves contain ':' (e.g. "verify:abc123"),
// as may IPv6 client keys, so colons are kept.
func Key(identifier, clientKey string) string {
	return KeyPrefix + SanitizeKeySegment(identifier) + ":" + SanitizeKeySegment(clientKey)
}

// SanitizeKeySegment drops whitespace and control characters and replaces a
// segment longer than maxKeySegment with a digest, so distinct long values
// still get distinct counters but the key stays bounded.
func SanitizeKeySegment(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if len(s) <= maxKeySegment {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	return "sha256-" + hex.EncodeToString(sum[:16])
}
