// Package textutil provides text, number and date helpers shared by the
// official-rate engine and the HTTP layer.
//
// The upstream calculator is a legacy server-rendered app that emits latin1
// HTML with a handful of named entities and es-AR numeric notation
// (comma decimal, dot thousands). Everything here is pure and stateless.
package textutil

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// entityReplacer covers the fixed entity set the upstream actually emits.
// Unrecognized entities must pass through unchanged, so a full HTML
// unescaper is deliberately not used.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x2F;", "/",
	"&#X2F;", "/",
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// DecodeEntities replaces the known HTML entities with their characters.
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// CleanLabel decodes entities, collapses whitespace runs to a single space
// and trims the result.
func CleanLabel(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(DecodeEntities(s), " "))
}

// NormalizeKey returns an accent- and case-insensitive lookup key for a
// label. Display strings must never go through this.
func NormalizeKey(s string) string {
	cleaned := CleanLabel(s)
	stripped, _, err := transform.String(transform.Chain(
		norm.NFD,
		transform.RemoveFunc(func(r rune) bool { return unicode.Is(unicode.Mn, r) }),
	), cleaned)
	if err != nil {
		stripped = cleaned
	}
	return strings.ToUpper(stripped)
}

// ParseLocalizedNumber parses a numeric string that may use either es-AR
// notation ("1.234,56") or plain dot-decimal notation ("1234.56").
// When both separators are present the dot is taken as thousands separator.
// A lone separator is always read as the decimal point, which is ambiguous
// for inputs like "1.2345"; that behavior is inherited from the upstream
// and kept as-is.
func ParseLocalizedNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	var normalized string
	if strings.Contains(raw, ",") && strings.Contains(raw, ".") {
		normalized = strings.ReplaceAll(raw, ".", "")
		normalized = strings.Replace(normalized, ",", ".", 1)
	} else {
		normalized = strings.Replace(raw, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FormatOfficialNumber renders a number the way the legacy form expects:
// fixed decimals, trailing zeros (and a then-dangling separator) stripped,
// comma as decimal separator. Non-finite input yields "".
func FormatOfficialNumber(v float64, decimals int) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	fixed := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.Contains(fixed, ".") {
		fixed = strings.TrimRight(fixed, "0")
		fixed = strings.TrimSuffix(fixed, ".")
	}
	return strings.ReplaceAll(fixed, ".", ",")
}

var (
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	latinDatePattern = regexp.MustCompile(`^\d{2}[/-]\d{2}[/-]\d{4}$`)
)

// ToWireDate converts a date string to the upstream's dd-mm-yyyy wire
// format. Accepts yyyy-mm-dd, dd/mm/yyyy and dd-mm-yyyy. Returns "" for
// anything else; the caller decides whether that is a validation error.
func ToWireDate(s string) string {
	raw := strings.TrimSpace(s)
	switch {
	case isoDatePattern.MatchString(raw):
		parts := strings.SplitN(raw, "-", 3)
		return parts[2] + "-" + parts[1] + "-" + parts[0]
	case latinDatePattern.MatchString(raw):
		return strings.ReplaceAll(raw, "/", "-")
	default:
		return ""
	}
}
