// Package core holds the cached domain model: groups, expenses, settlements
// and votes, plus money parsing.
package core

import (
	"errors"
	"strconv"
	"strings"
)

// Money is an amount in the smallest currency unit.
type Money int64

var ErrInvalidAmount = errors.New("invalid amount")

func (m Money) Validate() error {
	if m <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount parses a positive integer amount typed by a user.
//
// Group separators (',', '_' and spaces) are ignored, so "30,000" and
// "30 000" both parse to 30000. Fractions, signs and zero are rejected.
//
// Examples:
//
//	ParseAmount("30000")  -> 30000, nil
//	ParseAmount("30,000") -> 30000, nil
//	ParseAmount("-5")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',' || r == '_' || r == ' ':
			// group separator
		default:
			return 0, ErrInvalidAmount
		}
	}
	if b.Len() == 0 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return Money(v), nil
}

// String formats m with comma group separators, the inverse of ParseAmount.
func (m Money) String() string {
	n := int64(m)
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	b.WriteString(sign)
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
