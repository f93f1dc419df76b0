package utils

import (
	"strings"
	"unicode"
)

// Mask hides a secret behind asterisks of the same length.
func Mask(secret string) string {
	return strings.Repeat("*", len([]rune(secret)))
}

// IsValidSecurityCode checks that a code is non-empty printable text without
// whitespace, since it travels as a single protocol token.
func IsValidSecurityCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
