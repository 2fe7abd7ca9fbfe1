package identity

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("email and password are required")
	ErrWeakPassword       = errors.New("password is too short")
	ErrInvalidToken       = errors.New("token is invalid or has expired")
	ErrNoSession          = errors.New("no active session")
)
