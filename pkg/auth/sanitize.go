package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeName cleans a display name: control characters are dropped and
// runs of whitespace collapse to a single space. The result is stored as
// plain text; HTML escaping happens where it is rendered.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, name)

	return strings.Join(strings.Fields(name), " ")
}

// ValidateStringLength validates that a string is within the specified
// length constraints, counted in characters.
func ValidateStringLength(field, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters long", field, min)
	}

	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters long", field, max)
	}

	return nil
}
