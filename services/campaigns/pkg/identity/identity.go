// Package identity normalizes donor and submitter contact details and hashes
// them so they can be used as rate-limit and deduplication keys without
// storing the raw values in logs or caches.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeEmail returns a canonical form of an email address.
//
// For Gmail addresses (@gmail.com and @googlemail.com):
//   - Strips the "+suffix" from the local part (user+tag -> user)
//   - Removes all dots from the local part (u.s.e.r -> user)
//   - Normalizes @googlemail.com to @gmail.com
//
// For all addresses:
//   - Lowercases the entire address
//   - Trims whitespace
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email // malformed, return as-is
	}

	local := email[:at]
	domain := email[at+1:]

	if domain == "googlemail.com" {
		domain = "gmail.com"
	}

	if domain == "gmail.com" {
		if plus := strings.Index(local, "+"); plus >= 0 {
			local = local[:plus]
		}
		local = strings.ReplaceAll(local, ".", "")
	}

	return local + "@" + domain
}

// NormalizeMobile strips a phone number down to digits and puts Indian
// mobile numbers in canonical 91XXXXXXXXXX form. Numbers written with a
// trunk "0" prefix or without a country code are both accepted.
func NormalizeMobile(phone string) string {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	result := digits.String()

	if len(result) == 11 && result[0] == '0' {
		result = result[1:]
	}
	if len(result) == 10 {
		result = "91" + result
	}

	return result
}

// ValidMobile reports whether phone normalizes to a ten-digit Indian mobile
// number (leading digit 6-9).
func ValidMobile(phone string) bool {
	n := NormalizeMobile(phone)
	if len(n) != 12 || !strings.HasPrefix(n, "91") {
		return false
	}
	return n[2] >= '6' && n[2] <= '9'
}

// E164 returns the normalized mobile number with a leading "+", suitable
// for SMS gateways.
func E164(phone string) string {
	n := NormalizeMobile(phone)
	if n == "" {
		return ""
	}
	return "+" + n
}

// HashIdentifier returns the hex-encoded SHA-256 hash of the given string.
// Use this on already-normalized values.
func HashIdentifier(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// MobileHash normalizes the phone number and returns its SHA-256 hash.
func MobileHash(phone string) string {
	return HashIdentifier(NormalizeMobile(phone))
}

// Mask hides all but the last four digits of a phone number for logging.
func Mask(phone string) string {
	n := NormalizeMobile(phone)
	if len(n) <= 4 {
		return strings.Repeat("*", len(n))
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}
