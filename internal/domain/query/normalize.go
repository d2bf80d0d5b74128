package query

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds a query to its matching form: NFKC (full-width digits and
// letters become ASCII, half-width katakana becomes full-width), lower case,
// inner whitespace runs collapsed to one space.
func Normalize(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// Compact is Normalize without any whitespace, for containment checks that
// must ignore spacing differences.
func Compact(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), "")
}
