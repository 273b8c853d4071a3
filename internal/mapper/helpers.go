package mapper

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dteintake/internal/docpath"
)

// DateLayouts are tried in order. Day-first layouts come before month-first
// ones because Salvadoran documents write dates as dd/mm/yyyy.
var DateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"01/02/2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// ParseDecimal converts JSON numbers and numeric strings to a decimal. It
// accepts either "." or "," as decimal separator, strips currency symbols and
// thousands separators, and reports false for anything it cannot read.
func ParseDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		return parseAmountString(n)
	default:
		return decimal.Zero, false
	}
}

// DecimalOr returns the parsed value of v, or def when it cannot be parsed.
func DecimalOr(v any, def decimal.Decimal) decimal.Decimal {
	if d, ok := ParseDecimal(v); ok {
		return d
	}
	return def
}

func parseAmountString(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(s)
	for _, symbol := range []string{"US$", "USD", "$", " ", "\u00a0"} {
		cleaned = strings.ReplaceAll(cleaned, symbol, "")
	}
	if cleaned == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// the rightmost separator is the decimal one
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) != 3 {
			cleaned = parts[0] + "." + parts[1]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDate reads a date from a string using DateLayouts. It never fails:
// unreadable input reports false and the caller decides what that means.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range DateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Lookup resolves a dotted path inside doc.
func Lookup(doc map[string]any, path string) (any, bool) {
	return docpath.Lookup(doc, path)
}

// LookupOr resolves a dotted path, returning def when it is missing.
func LookupOr(doc map[string]any, path string, def any) any {
	if v, ok := docpath.Lookup(doc, path); ok {
		return v
	}
	return def
}

// FirstOf returns the first path that resolves to a non-empty value.
func FirstOf(doc map[string]any, paths ...string) (any, string, bool) {
	for _, p := range paths {
		v, ok := docpath.Lookup(doc, p)
		if !ok {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, p, true
	}
	return nil, "", false
}

// FirstDecimal returns the first path whose value parses as an amount.
// Present but unparseable values are skipped.
func FirstDecimal(doc map[string]any, paths ...string) (decimal.Decimal, string, bool) {
	for _, p := range paths {
		v, ok := docpath.Lookup(doc, p)
		if !ok {
			continue
		}
		if d, ok := ParseDecimal(v); ok {
			return d, p, true
		}
	}
	return decimal.Zero, "", false
}

// LookupString resolves a path and renders scalars as strings. Objects and
// arrays yield "".
func LookupString(doc map[string]any, path string) string {
	v, ok := docpath.Lookup(doc, path)
	if !ok {
		return ""
	}
	return scalarString(v)
}

// FirstString is FirstOf restricted to values that render as a string.
func FirstString(doc map[string]any, paths ...string) string {
	for _, p := range paths {
		if s := LookupString(doc, p); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// intValue reads an integer, accepting numeric strings.
func intValue(v any) (int, bool) {
	d, ok := ParseDecimal(v)
	if !ok {
		return 0, false
	}
	return int(d.IntPart()), true
}

// JoinPresent joins the non-empty parts with ", ".
func JoinPresent(parts ...string) string {
	present := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			present = append(present, p)
		}
	}
	return strings.Join(present, ", ")
}

// fileStem returns the base name of source without its extension.
func fileStem(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// guard turns a panic inside Map into a MappingError.
func guard(source, mapper string, partial map[string]any, err *error) {
	if r := recover(); r != nil {
		*err = NewMappingError(source, mapper, fmt.Errorf("%w: %v", ErrUnexpected, r), partial)
	}
}
