// Package phone canonicalizes Russian phone numbers.
package phone

import "strings"

// Normalize strips everything but ASCII digits from raw and returns an
// 11-digit number starting with 7. The second result is false when raw
// cannot be read as a Russian mobile or landline number.
func Normalize(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return "7" + digits, true
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:], true
	case len(digits) == 11 && digits[0] == '7':
		return digits, true
	default:
		return "", false
	}
}
