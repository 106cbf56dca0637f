// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// NormalizeDigits reduces a phone number to its digits-only national form
// (10 digits, or 11 with the leading country code). Dialer payloads arrive
// with every imaginable formatting; parsing failures fall back to stripping
// non-digit characters so a lead is never dropped for a formatting quirk.
func NormalizeDigits(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err == nil && phonenumbers.IsValidNumber(number) {
		return digitsOnly(phonenumbers.Format(number, phonenumbers.E164))
	}

	return digitsOnly(trimmed)
}

// Valid reports whether a normalized number has a plausible NANP length.
func Valid(normalized string) bool {
	n := len(normalized)
	return n == 10 || n == 11
}

func digitsOnly(value string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
}
