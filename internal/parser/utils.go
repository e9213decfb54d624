package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeHeaderCell lowercases a header cell and collapses whitespace
// so alias matching tolerates renames like "Labor  Cost" or "MARKUP %".
func NormalizeHeaderCell(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.ReplaceAll(name, "\t", " ")
	name = strings.TrimSuffix(name, ":")
	name = whitespaceRe.ReplaceAllString(name, " ")
	return strings.ToLower(name)
}

// ParseCurrency parses currency text into dollars.
// Strips "$", ",", and whitespace; "(123.45)" is negative (accounting style);
// empty or unparseable text yields 0.
func ParseCurrency(s string) float64 {
	v, ok := ParseNumber(s)
	if !ok {
		return 0
	}
	return v
}

// ParsePercent parses percentage text ("20%", "20") into its numeric value.
// Empty or unparseable text yields 0.
func ParsePercent(s string) float64 {
	return ParseCurrency(s)
}

// ParseNumber parses loosely formatted numeric text, reporting whether the
// text was actually numeric. Used by strict callers that must distinguish
// "garbage" from zero.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Accounting-style negative: "(1,234.56)"
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// ContainsAny reports whether text contains any of the keywords.
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// IsEffectivelyEmpty reports whether every cell in the row is blank or a
// zero currency value ("", "-", "$0.00", "0").
func IsEffectivelyEmpty(row RawRow) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" || cell == "-" {
			continue
		}
		if v, ok := ParseNumber(cell); ok && v == 0 {
			continue
		}
		return false
	}
	return true
}
