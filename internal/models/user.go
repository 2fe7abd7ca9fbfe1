package models

import "time"

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusPending   AccountStatus = "pending"
)

// Account is the credential record owned by the identity service.
type Account struct {
	ID           string
	Email        string
	PasswordHash []byte
	Status       AccountStatus
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a persisted refresh session, one per (account, device).
type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	RefreshTokenHash []byte
	Recovery         bool
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}

// AuthSession is the token bundle handed to clients.
type AuthSession struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Recovery     bool      `json:"recovery"`
}

func (s *AuthSession) Expired(now time.Time) bool {
	return s == nil || !now.Before(s.ExpiresAt)
}

type AuthEvent string

const (
	AuthEventSignedIn         AuthEvent = "SIGNED_IN"
	AuthEventSignedOut        AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	AuthEventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
	AuthEventUserUpdated      AuthEvent = "USER_UPDATED"
)

// SignUpMetadata is stored on the profile created at registration.
type SignUpMetadata struct {
	FirstName string
	LastName  string
	FacultyID *int64
}
