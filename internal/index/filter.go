package index

import (
	"fmt"
	"strings"
)

// Filter expressions are boolean strings over indexed metadata fields,
// evaluated server-side by the vector index. Values are single-quoted with
// embedded quotes doubled.

// Quote returns the value as a single-quoted literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Eq builds an exact-match clause on a string field.
func Eq(field, value string) string {
	return fmt.Sprintf("%s = %s", field, Quote(value))
}

// NeInt builds a not-equal clause on a numeric field.
func NeInt(field string, value int) string {
	return fmt.Sprintf("%s != %d", field, value)
}

// EqInt builds an exact-match clause on a numeric field.
func EqInt(field string, value int) string {
	return fmt.Sprintf("%s = %d", field, value)
}

// AnyOf builds a parenthesized disjunction of exact matches. Empty input
// yields an empty clause (no filtering on that dimension).
func AnyOf(field string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	ors := make([]string, 0, len(values))
	for _, v := range values {
		ors = append(ors, Eq(field, v))
	}
	return "(" + strings.Join(ors, " or ") + ")"
}

// And conjoins the non-empty clauses.
func And(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " and ")
}
