// Package phone normalizes customer phone numbers to a canonical digit string.
package phone

import (
	"strings"
	"unicode"
)

// DefaultCountryCode is prefixed to bare 10 digit national numbers.
const DefaultCountryCode = "91"

// MinDigits is the shortest normalized number that can be delivered to.
const MinDigits = 10

// Digits strips everything except ASCII digits.
func Digits(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the canonical digit form of a user supplied number.
// Ten digit numbers get the default country code; longer numbers are assumed
// to carry one already. Shorter numbers are returned as-is and fail Valid.
func Normalize(value string) string {
	digits := Digits(value)
	if len(digits) == MinDigits {
		return DefaultCountryCode + digits
	}
	return digits
}

// Valid reports whether a normalized number is long enough to deliver to.
func Valid(normalized string) bool {
	return len(normalized) >= MinDigits
}

// WhatsAppAddress formats a normalized number as a WhatsApp provider address.
func WhatsAppAddress(normalized string) string {
	return "whatsapp:+" + normalized
}

// Equal reports whether two user supplied numbers identify the same recipient.
func Equal(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na != "" && na == nb {
		return true
	}
	return strings.TrimSpace(a) != "" && strings.TrimSpace(a) == strings.TrimSpace(b)
}
