// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	defaultRegion = "BR"

	// CountryPrefix is the domestic country calling code without "+".
	CountryPrefix = "55"

	keyLength      = 9
	nationalLength = 11

	// MinSendableDigits is the shortest digit string accepted for outbound sends.
	MinSendableDigits = 8
)

// Digits strips every non-digit character from input.
func Digits(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Key returns the matching key for a raw phone: the trailing 9 digits once the
// country prefix and anything beyond a national number are removed. Shorter
// inputs degrade to whatever digits remain. Returns nil when no digits are present.
//
// Different area codes sharing the same local number produce the same key.
func Key(raw string) *string {
	d := Digits(raw)
	if strings.HasPrefix(d, CountryPrefix) && len(d) > nationalLength {
		d = d[len(CountryPrefix):]
	}
	if len(d) > nationalLength {
		d = d[len(d)-nationalLength:]
	}
	if len(d) >= keyLength {
		d = d[len(d)-keyLength:]
	}
	if d == "" {
		return nil
	}
	return &d
}

// KeyPtr is Key for optional input.
func KeyPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	return Key(*raw)
}

// International converts a stored raw phone to the digits-only international form
// used by the messaging provider. Numbers already carrying the country prefix are
// left as-is, domestic numbers with area code (10 or 11 digits) get the prefix, and
// anything else passes through unchanged.
func International(raw string) string {
	d := Digits(raw)
	switch {
	case strings.HasPrefix(d, CountryPrefix):
		return d
	case len(d) == 10 || len(d) == 11:
		return CountryPrefix + d
	default:
		return d
	}
}

// FormatE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func FormatE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
