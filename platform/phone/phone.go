// Package phone provides phone number canonicalization utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	countryCode = "55"
	ninthDigit  = "9"

	defaultRegion = "BR"
)

// Normalize canonicalizes a Brazilian mobile number into the full
// country+area+ninth-digit form used as the identity key.
//
// After stripping every non-digit character, the digit count decides how to
// complete the number:
//
//	13 digits (55 + area + 9 + number)  kept as-is
//	12 digits (55 + area + number)      ninth digit inserted after the area code
//	11 digits (area + 9 + number)       country code prepended
//	10 digits (area + number)           country code prepended and ninth digit inserted
//
// Any other length is returned digit-only, untouched.
func Normalize(raw string) string {
	digits := stripNonDigits(raw)

	switch len(digits) {
	case 13:
		return digits
	case 12:
		return digits[:4] + ninthDigit + digits[4:]
	case 11:
		return countryCode + digits
	case 10:
		return countryCode + digits[:2] + ninthDigit + digits[2:]
	default:
		return digits
	}
}

// WithoutNinthDigit returns the legacy form with the mobile marker removed.
// Only a 13-digit number carrying "9" right after the area code qualifies;
// anything else is returned unchanged. Stored records predating the ninth
// digit rollout were saved in this shorter form.
func WithoutNinthDigit(normalized string) string {
	if len(normalized) == 13 && normalized[4:5] == ninthDigit {
		return normalized[:4] + normalized[5:]
	}
	return normalized
}

// Candidates returns the set of canonical forms to try when matching a raw
// number against storage: the normalized form and, when it differs, the
// ninth-digit-stripped form.
func Candidates(raw string) []string {
	normalized := Normalize(raw)
	legacy := WithoutNinthDigit(normalized)
	if legacy == normalized {
		return []string{normalized}
	}
	return []string{normalized, legacy}
}

// IsPlausible reports whether the input parses as a valid Brazilian number.
// Used to validate admin-entered broker phones before they join the rotation;
// inbound webhook numbers are accepted as-is and only normalized.
func IsPlausible(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
