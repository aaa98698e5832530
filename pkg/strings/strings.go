package strings

import (
	"strings"
	"unicode"
)

// TrimStrings trims whitespace from each referenced string in place.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

// TrimMap trims whitespace from every value of a string map in place.
func TrimMap(m map[string]string) {
	for k := range m {
		m[k] = strings.TrimSpace(m[k])
	}
}

// ToSnakeCase converts a Go field name into its snake_case wire form.
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
