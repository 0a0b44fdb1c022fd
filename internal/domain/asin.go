package domain

import (
	"regexp"
	"strings"
)

// asinPattern is the canonical ASIN shape: exactly ten uppercase
// alphanumeric characters.
var asinPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// NormalizeASIN trims whitespace and upper-cases an identifier. It does not
// validate; pair with ValidASIN.
func NormalizeASIN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidASIN reports whether s is a well-formed ASIN after normalization.
func ValidASIN(s string) bool {
	return asinPattern.MatchString(s)
}

// NormalizeASINs normalizes every input, keeps the well-formed ones in input
// order (first occurrence wins on duplicates), and returns the number of
// inputs dropped as malformed. Malformed inputs are never coerced.
func NormalizeASINs(inputs []string) (valid []string, dropped int) {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		asin := NormalizeASIN(in)
		if !ValidASIN(asin) {
			dropped++
			continue
		}
		if seen[asin] {
			continue
		}
		seen[asin] = true
		valid = append(valid, asin)
	}
	return valid, dropped
}
