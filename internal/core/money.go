// This file contains functions for parsing and formatting ariary amounts.
// The ariary circulates in whole units, so parsing rejects fractions rather
// than rounding them.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAriary converts a decimal string to a Money amount.
//
// It accepts plain digit runs with optional space or underscore grouping
// ("10000", "10 000", "10_000"). The result is always positive. Returns an
// error for invalid formats, negative values, zero, or fractional amounts.
func ParseAriary(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return Money{}, ErrInvalidAmount
	}
	var digits strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == ' ' || r == '_':
			// grouping separator
		default:
			return Money{}, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || v <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Ariary: v}, nil
}

// String formats the amount with space grouping and the Ar suffix, for
// display in exports and logs. Use Ariary for calculations.
func (m Money) String() string {
	s := strconv.FormatInt(m.Ariary, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String() + " Ar"
	if neg {
		out = "-" + out
	}
	return out
}
