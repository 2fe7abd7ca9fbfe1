package session

import "unicode/utf8"

// MinPasswordLength is the shortest password the portal accepts.
const MinPasswordLength = 6

// ValidateNewPassword checks a new password and its confirmation before any
// backend call.
func ValidateNewPassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}
