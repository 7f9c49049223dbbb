// Package validation checks user input before it reaches the pipeline.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrQueryEmpty is returned when the chat query is empty or whitespace-only.
var ErrQueryEmpty = errors.New("query is required")

// ErrQueryTooLong is returned when the chat query exceeds the maximum length.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when the chat query contains control characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrNameEmpty is returned when a city or destination is empty after trim.
var ErrNameEmpty = errors.New("name is required")

// ErrNameTooShort is returned when a city or destination is below the minimum length.
var ErrNameTooShort = errors.New("name too short")

// ErrNameTooLong is returned when a city or destination exceeds the maximum length.
var ErrNameTooLong = errors.New("name too long")

// ErrNameInvalidChars is returned when a city or destination contains disallowed characters.
var ErrNameInvalidChars = errors.New("name contains invalid characters")

// ValidateQuery trims the chat query, folds line breaks and tabs to spaces,
// and enforces maxLen in runes (0 = unbounded). Other control characters are
// rejected.
func ValidateQuery(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrQueryEmpty
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			r = ' '
		case unicode.IsControl(r):
			return "", ErrQueryInvalidChars
		}
		b.WriteRune(r)
		n++
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	return b.String(), nil
}

// ValidateName trims a city or destination, enforces length bounds (minLen,
// maxLen in runes) and restricts it to letters, digits, space, comma, hyphen,
// period and apostrophe ("St. John's"). Normalization is left to callers.
func ValidateName(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrNameEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrNameTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
