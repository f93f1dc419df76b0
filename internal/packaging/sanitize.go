package packaging

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PlaceholderName replaces names that sanitize to nothing usable.
const PlaceholderName = "unnamed_file"

// SanitizeName decomposes name, drops combining marks and replaces every
// rune outside [A-Za-z0-9._-] with '_'. The result is never empty, never
// "." or "..", and SanitizeName(SanitizeName(x)) == SanitizeName(x).
func SanitizeName(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(t, name)
	if err != nil {
		decomposed = name
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if isSafeRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" || out == "." || out == ".." {
		return PlaceholderName
	}
	return out
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
