// Package upi builds UPI deep links and renders them as scannable QR codes.
package upi

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the only currency UPI supports.
const Currency = "INR"

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)

// Payment describes a UPI pay request. A zero Amount leaves the amount for
// the payer to enter in their app.
type Payment struct {
	PayeeAddress string
	PayeeName    string
	Amount       decimal.Decimal
	Note         string // defaults to "Donation for {PayeeName}"
}

// ValidAddress reports whether s looks like a UPI virtual payment address
// (handle@provider).
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// DonationNote is the transaction note shown in the payer's app.
func DonationNote(name string) string {
	return "Donation for " + name
}

// BuildURI returns the upi://pay link for p. Parameters appear in the order
// pa, pn, am, cu, tn; the payee address is passed through as-is and the
// free-text fields are percent-encoded.
func BuildURI(p Payment) string {
	note := p.Note
	if note == "" {
		note = DonationNote(p.PayeeName)
	}

	var b strings.Builder
	b.WriteString("upi://pay?pa=")
	b.WriteString(p.PayeeAddress)
	b.WriteString("&pn=")
	b.WriteString(Escape(p.PayeeName))
	if p.Amount.IsPositive() {
		b.WriteString("&am=")
		b.WriteString(FormatAmount(p.Amount))
	}
	b.WriteString("&cu=")
	b.WriteString(Currency)
	b.WriteString("&tn=")
	b.WriteString(Escape(note))
	return b.String()
}

// FormatAmount renders whole rupees without decimals and anything else with
// exactly two.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String()
	}
	return d.StringFixed(2)
}

// Escape percent-encodes s the way browsers' encodeURIComponent does:
// letters, digits and -_.!~*'() are kept, everything else is encoded
// byte-wise as UTF-8 (so a space becomes %20, not +).
func Escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
