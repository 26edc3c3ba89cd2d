package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 100
)

// IsValidPassword reports whether password is strong enough for a user with
// the given name and email. The password must be between MinPasswordLength
// and MaxPasswordLength characters, contain an uppercase letter, a lowercase
// letter, a digit and a special character, and must not appear inside the
// name or email (case-insensitive).
func IsValidPassword(name, email, password string) bool {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return false
	}

	lp := strings.ToLower(password)
	if name != "" && strings.Contains(strings.ToLower(name), lp) {
		return false
	}
	if email != "" && strings.Contains(strings.ToLower(email), lp) {
		return false
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}

// TooLong reports whether password exceeds MaxPasswordLength. Callers check
// it before hashing.
func TooLong(password string) bool {
	return utf8.RuneCountInString(password) > MaxPasswordLength
}
