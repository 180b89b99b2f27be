// Package textnorm converts raw per-field product attributes into canonical
// query strings.
//
// List-typed fields (labels, features) arrive in several textual shapes
// depending on which upstream wrote them: a JSON array, a single-quoted
// literal list, or a bare comma-joined string. The parser chain tries those
// in priority order and joins elements with a space; scalar fields are
// trimmed as-is.
package textnorm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/competisearch/internal/domain/product"
)

// fieldSeparator joins non-empty field texts into the combined evidence text.
const fieldSeparator = "。"

var listFields = map[string]bool{
	"labels":   true,
	"features": true,
}

// Normalize converts a raw field value into its canonical query string.
// List-typed fields go through ParseListLike; scalars are trimmed.
func Normalize(fieldName, raw string) string {
	if listFields[fieldName] {
		return ParseListLike(raw)
	}
	return strings.TrimSpace(raw)
}

// ParseListLike parses a textual list representation and joins its elements
// with a space. Tried in priority order: JSON array, single-quoted literal
// list, bracket/quote-stripped comma split. On total parse failure the
// trimmed raw string is returned unchanged.
func ParseListLike(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if items, ok := parseJSONList(s); ok {
		return strings.Join(items, " ")
	}
	if items, ok := parseQuotedLiteralList(s); ok {
		return strings.Join(items, " ")
	}
	if items, ok := parseBracketSplit(s); ok {
		return strings.Join(items, " ")
	}
	return s
}

// parseJSONList accepts a JSON array of scalars.
func parseJSONList(s string) ([]string, bool) {
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return nil, false
	}
	items := make([]string, 0, len(arr))
	for _, v := range arr {
		switch t := v.(type) {
		case string:
			items = append(items, t)
		case float64:
			items = append(items, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), "."))
		case bool:
			items = append(items, fmt.Sprintf("%t", t))
		default:
			return nil, false
		}
	}
	return items, true
}

// parseQuotedLiteralList accepts a bracketed list of single-quoted strings,
// e.g. ['百万医疗', '0免赔']. Converting the quotes makes it valid JSON only
// when no element contains a double quote, so it is parsed by hand.
func parseQuotedLiteralList(s string) ([]string, bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []string{}, true
	}

	var items []string
	rest := inner
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != '\'' {
			return nil, false
		}
		end := strings.IndexByte(rest[1:], '\'')
		if end < 0 {
			return nil, false
		}
		items = append(items, rest[1:1+end])
		rest = strings.TrimSpace(rest[2+end:])
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, false
		}
		rest = rest[1:]
	}
	return items, true
}

// parseBracketSplit is the last-resort parser: strip brackets and quotes,
// split on commas, drop empties. Only applies to bracketed input so plain
// prose containing commas is left alone.
func parseBracketSplit(s string) ([]string, bool) {
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	txt := strings.Trim(s, "[]")
	txt = strings.ReplaceAll(txt, "'", "")
	txt = strings.ReplaceAll(txt, `"`, "")
	parts := strings.Split(txt, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items, true
}

// NormalizeFields normalizes every text field of the map, keeping the full
// field set (missing fields become empty strings).
func NormalizeFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(product.TextFields))
	for _, f := range product.TextFields {
		out[f] = Normalize(f, fields[f])
	}
	return out
}

// CombinedText concatenates the normalized non-empty text fields in fixed
// field order, joined with a full-width period. The result feeds both the
// sparse-query input and the rerank evidence.
func CombinedText(fields map[string]string) string {
	parts := make([]string, 0, len(product.TextFields))
	for _, f := range product.TextFields {
		if v := Normalize(f, fields[f]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, fieldSeparator)
}
