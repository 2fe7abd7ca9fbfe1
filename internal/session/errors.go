package session

import "errors"

var (
	ErrAuthService        = errors.New("authentication service error")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRegistration       = errors.New("registration failed")
	ErrRecovery           = errors.New("password recovery failed")
	ErrWeakPassword       = errors.New("password must have at least 6 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrNoRecoverySession  = errors.New("no active recovery session")
)
