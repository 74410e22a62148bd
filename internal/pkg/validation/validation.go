package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Harvest window bounds are year-month tokens, e.g. 2025-07.
var yearMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

var digitsRe = regexp.MustCompile(`^[0-9]+$`)

// Plain decimal with optional sign and exponent. Hex floats, underscores,
// NaN and Inf do not match.
var decimalRe = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

func IsYearMonth(s string) bool {
	return yearMonthRe.MatchString(s)
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	return digitsRe.MatchString(s)
}

// ParseNumber parses a decimal number the way an HTML number input submits it.
// Surrounding whitespace is ignored. Hex notation, NaN and infinities are
// rejected, as are values that overflow float64.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !decimalRe.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
