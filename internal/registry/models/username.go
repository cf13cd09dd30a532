package models

import (
	"unicode/utf8"

	dErrors "alpine/pkg/domain-errors"
)

const (
	MaxUsernameLength = 32

	ReasonTooLong      = "must be shorter than 33 characters"
	ReasonInvalidChars = "only alphanumeric, underscores, and dashes are allowed"
)

// ValidateUsername applies the registration rules and returns the username unchanged.
// Casing is preserved; uniqueness is checked case-insensitively elsewhere.
func ValidateUsername(username string) (string, error) {
	if username == "" {
		return "", ErrEmptyUsername()
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", ErrInvalidUsername(username, ReasonTooLong)
	}
	for _, r := range username {
		if !isUsernameRune(r) {
			return "", ErrInvalidUsername(username, ReasonInvalidChars)
		}
	}
	return username, nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}

func ErrEmptyUsername() error {
	return dErrors.New(dErrors.CodeEmptyUsername, "username cannot be empty")
}

func ErrInvalidUsername(username, reason string) error {
	return dErrors.New(dErrors.CodeInvalidUsername, "invalid username ("+username+") - "+reason).
		WithDetail("username", username).
		WithDetail("reason", reason)
}
