package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/config"
	"github.com/Kouriin1/Servicio-Comunitario/internal/ids"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
	"github.com/Kouriin1/Servicio-Comunitario/internal/security"
)

type AccountStore interface {
	CreateWithProfile(ctx context.Context, account models.Account, profile models.Profile) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	Confirm(ctx context.Context, id string) error
}

type SessionStore interface {
	Upsert(ctx context.Context, session models.Session) error
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByRefreshHash(ctx context.Context, refreshHash []byte) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	Touch(ctx context.Context, sessionID string) error
}

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload any) (string, error)
}

// Service is the server side of authentication: accounts, refresh sessions,
// recovery and confirmation tokens.
type Service struct {
	accounts AccountStore
	sessions SessionStore
	profiles ProfileReader
	tokens   *redis.Client
	queue    TaskQueue
	cfg      config.SecurityConfig
	portal   config.PortalConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(
	accounts AccountStore,
	sessions SessionStore,
	profiles ProfileReader,
	tokens *redis.Client,
	queue TaskQueue,
	cfg config.SecurityConfig,
	portal config.PortalConfig,
	log zerolog.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		profiles: profiles,
		tokens:   tokens,
		queue:    queue,
		cfg:      cfg,
		portal:   portal,
		log:      log.With().Str("component", "identity").Logger(),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// SignUp registers an account with a student profile. The returned session is
// nil when the account must confirm its email first.
func (s *Service) SignUp(ctx context.Context, email, password string, meta models.SignUpMetadata, deviceID string) (*models.AuthSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len([]rune(password)) < s.cfg.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := models.Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Status:       models.AccountStatusActive,
	}
	if s.cfg.RequireConfirmation {
		account.Status = models.AccountStatusPending
	} else {
		now := s.now()
		account.ConfirmedAt = &now
	}

	profile := models.Profile{
		ID:        account.ID,
		Email:     email,
		FirstName: strings.TrimSpace(meta.FirstName),
		LastName:  strings.TrimSpace(meta.LastName),
		Role:      string(models.RoleStudent),
		FacultyID: meta.FacultyID,
	}

	if err := s.accounts.CreateWithProfile(ctx, account, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if s.cfg.RequireConfirmation {
		if err := s.sendConfirmation(ctx, account, profile); err != nil {
			s.log.Error().Err(err).Str("user_id", account.ID).Msg("queue confirmation mail failed")
		}
		return nil, nil
	}

	return s.issue(ctx, account, deviceID, false)
}

func (s *Service) SignIn(ctx context.Context, email, password, deviceID string) (*models.AuthSession, error) {
	account, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if account.Status != models.AccountStatusActive {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, account, deviceID, false)
}

// Refresh rotates the refresh token of a live session.
func (s *Service) Refresh(ctx context.Context, refreshToken, deviceID string) (*models.AuthSession, error) {
	session, err := s.sessions.FindByRefreshHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if session.DeviceID != deviceID {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(session.ExpiresAt) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusActive {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return nil, ErrInvalidCredentials
	}

	return s.persist(ctx, account, session)
}

// SignOut revokes the session. Unknown sessions are treated as already gone.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Authenticate validates an access token and the session it belongs to.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*security.AccessClaims, error) {
	claims, err := security.ParseAccessToken(accessToken, s.cfg.JWTAccessSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if _, err := s.sessions.GetByID(ctx, claims.SessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if err := s.sessions.Touch(ctx, claims.SessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", claims.SessionID).Msg("touch session failed")
	}
	return claims, nil
}

func (s *Service) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	if len([]rune(newPassword)) < s.cfg.MinPasswordLength {
		return ErrWeakPassword
	}
	claims, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, claims.UserID, hash); err != nil {
		return err
	}

	s.log.Info().Str("user_id", claims.UserID).Bool("recovery", claims.Recovery).Msg("password updated")
	return nil
}

func (s *Service) issue(ctx context.Context, account models.Account, deviceID string, recovery bool) (*models.AuthSession, error) {
	if deviceID == "" {
		deviceID = ids.New()
	}
	session := models.Session{
		ID:       ids.New(),
		UserID:   account.ID,
		DeviceID: deviceID,
		Recovery: recovery,
	}
	auth, err := s.persist(ctx, account, session)
	if err != nil {
		return nil, err
	}

	if err := s.enforceSessionLimit(ctx, account.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", account.ID).Msg("enforce session limit failed")
	}
	return auth, nil
}

// persist stores session with a fresh refresh token and signs an access token for it.
func (s *Service) persist(ctx context.Context, account models.Account, session models.Session) (*models.AuthSession, error) {
	refreshToken, refreshHash, err := security.GenerateOpaqueToken(48)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session.RefreshTokenHash = refreshHash
	session.ExpiresAt = now.Add(s.cfg.JWTRefreshTTL)
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := security.GenerateAccessToken(s.cfg.JWTAccessSecret, security.AccessSubject{
		UserID:    account.ID,
		SessionID: session.ID,
		DeviceID:  session.DeviceID,
		Role:      string(s.roleOf(ctx, account.ID)),
		Recovery:  session.Recovery,
	}, s.cfg.JWTAccessTTL, now)
	if err != nil {
		return nil, err
	}

	return &models.AuthSession{
		ID:           session.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		UserID:       account.ID,
		Email:        account.Email,
		Recovery:     session.Recovery,
	}, nil
}

func (s *Service) roleOf(ctx context.Context, userID string) models.Role {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("resolve role failed")
		}
		return models.RoleStudent
	}
	return models.NormalizeRole(profile.Role)
}

func (s *Service) enforceSessionLimit(ctx context.Context, userID string) error {
	if s.cfg.MaxSessions <= 0 {
		return nil
	}
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.MaxSessions {
		return nil
	}
	return s.sessions.DeleteOldestSessions(ctx, userID, s.cfg.MaxSessions)
}
