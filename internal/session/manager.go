package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/identity"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

// RedirectNone tells the caller to show the confirmation notice instead of navigating.
const RedirectNone = ""

const notifyTimeout = 10 * time.Second

type AuthClient interface {
	GetSession(ctx context.Context) (*models.AuthSession, error)
	OnAuthStateChange(fn func(models.AuthEvent, *models.AuthSession)) func()
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignUp(ctx context.Context, email, password string, meta models.SignUpMetadata) (*models.AuthSession, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	VerifyRecovery(ctx context.Context, token string) (*models.AuthSession, error)
	ConfirmEmail(ctx context.Context, token string) (*models.AuthSession, error)
	UpdateUser(ctx context.Context, password string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateFaculty(ctx context.Context, userID string, facultyID int64) error
}

type Options struct {
	AdminRedirect       string
	DefaultRedirect     string
	RecoveryRedirectURL string
}

type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	FacultyID *int64
}

// State is a snapshot of the manager. User is derived from Profile.
type State struct {
	Session *models.AuthSession
	Profile *models.Profile
	User    *models.User
	Loading bool
}

type subscriber struct {
	id int
	fn func(State)
}

// Manager owns the session and profile of one workspace.
type Manager struct {
	auth     AuthClient
	profiles ProfileStore
	opts     Options
	log      zerolog.Logger

	mu          sync.RWMutex
	session     *models.AuthSession
	profile     *models.Profile
	loading     bool
	generation  uint64
	subscribers []subscriber
	nextID      int

	unsubscribe func()
}

func NewManager(auth AuthClient, profiles ProfileStore, opts Options, log zerolog.Logger) *Manager {
	if opts.AdminRedirect == "" {
		opts.AdminRedirect = "/admin"
	}
	if opts.DefaultRedirect == "" {
		opts.DefaultRedirect = "/dashboard"
	}
	m := &Manager{
		auth:     auth,
		profiles: profiles,
		opts:     opts,
		log:      log.With().Str("component", "session").Logger(),
		loading:  true,
	}
	m.unsubscribe = auth.OnAuthStateChange(m.onAuthEvent)
	return m
}

// Close releases the identity subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.subscribers = nil
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) onAuthEvent(event models.AuthEvent, session *models.AuthSession) {
	m.log.Debug().Str("event", string(event)).Msg("auth state changed")
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	m.apply(ctx, session)
}

// Restore picks up a session persisted for this device.
func (m *Manager) Restore(ctx context.Context) error {
	session, err := m.auth.GetSession(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("restore session failed")
		m.apply(ctx, nil)
		return fmt.Errorf("%w: %v", ErrAuthService, err)
	}
	if session != nil && m.resolved(session.ID) != nil {
		return nil
	}
	m.apply(ctx, session)
	return nil
}

// Subscribe registers fn for every state transition.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subscribers {
				if s.id == id {
					m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	return State{
		Session: m.session,
		Profile: m.profile,
		User:    models.DeriveUser(m.profile),
		Loading: m.loading,
	}
}

func (m *Manager) CurrentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.UserID
}

// CurrentUser is the derived user of the current profile, nil when signed out.
func (m *Manager) CurrentUser() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.DeriveUser(m.profile)
}

// apply replaces the current session and resolves its profile. A profile that
// arrives after the session was replaced again is discarded.
func (m *Manager) apply(ctx context.Context, session *models.AuthSession) {
	m.mu.Lock()
	m.generation++
	generation := m.generation
	m.session = session
	if session == nil {
		m.profile = nil
		m.loading = false
		state := m.stateLocked()
		subs := m.snapshotLocked()
		m.mu.Unlock()
		notify(subs, state)
		return
	}
	if m.profile != nil && m.profile.ID != session.UserID {
		m.profile = nil
	}
	m.mu.Unlock()

	profile, err := m.profiles.GetProfile(ctx, session.UserID)

	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		m.log.Debug().Str("user_id", session.UserID).Msg("discarding stale profile")
		return
	}
	if err != nil {
		m.log.Error().Err(err).Str("user_id", session.UserID).Msg("resolve profile failed")
		m.profile = nil
	} else {
		m.profile = profile
	}
	m.loading = false
	state := m.stateLocked()
	subs := m.snapshotLocked()
	m.mu.Unlock()
	notify(subs, state)
}

// resolved returns the profile if sessionID is current and resolved.
func (m *Manager) resolved(sessionID string) *models.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil || m.session.ID != sessionID || m.loading {
		return nil
	}
	return m.profile
}

func (m *Manager) snapshotLocked() []subscriber {
	subs := make([]subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	return subs
}

func notify(subs []subscriber, state State) {
	for _, s := range subs {
		s.fn(state)
	}
}

// SignIn authenticates and returns where the user should land.
func (m *Manager) SignIn(ctx context.Context, email, password string) (string, error) {
	session, err := m.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrAuthService)
		}
		return "", fmt.Errorf("%w: %v", ErrAuthService, err)
	}

	profile := m.resolved(session.ID)
	if profile == nil {
		m.apply(ctx, session)
		profile = m.resolved(session.ID)
	}

	if models.DeriveUser(profile).IsAdmin() {
		return m.opts.AdminRedirect, nil
	}
	return m.opts.DefaultRedirect, nil
}

// SignUp registers the user. It returns RedirectNone when the account still
// needs email confirmation.
func (m *Manager) SignUp(ctx context.Context, input SignUpInput) (string, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrRegistration)
	}
	if len([]rune(input.Password)) < MinPasswordLength {
		return "", ErrWeakPassword
	}

	session, err := m.auth.SignUp(ctx, email, input.Password, models.SignUpMetadata{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		FacultyID: input.FacultyID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	if session == nil {
		return RedirectNone, nil
	}

	if input.FacultyID != nil {
		if err := m.profiles.UpdateFaculty(ctx, session.UserID, *input.FacultyID); err != nil {
			m.log.Warn().Err(err).Str("user_id", session.UserID).Msg("set faculty after sign-up failed")
		} else {
			m.apply(ctx, session)
		}
	}
	return m.opts.DefaultRedirect, nil
}

// SignOut ends the session. Local state is cleared whatever the backend says.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.auth.SignOut(ctx)
	m.apply(ctx, nil)
	if err != nil {
		m.log.Warn().Err(err).Msg("backend sign-out failed")
		return fmt.Errorf("%w: %v", ErrAuthService, err)
	}
	return nil
}

func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrRecovery)
	}
	if err := m.auth.ResetPasswordForEmail(ctx, email, m.opts.RecoveryRedirectURL); err != nil {
		return fmt.Errorf("%w: %w", ErrRecovery, err)
	}
	return nil
}

// VerifyRecovery exchanges a recovery link token for a recovery-mode session.
func (m *Manager) VerifyRecovery(ctx context.Context, token string) error {
	if _, err := m.auth.VerifyRecovery(ctx, token); err != nil {
		return fmt.Errorf("%w: %w", ErrRecovery, err)
	}
	return nil
}

// ConfirmEmail activates the account behind token and signs it in.
func (m *Manager) ConfirmEmail(ctx context.Context, token string) (string, error) {
	session, err := m.auth.ConfirmEmail(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	if models.DeriveUser(m.resolved(session.ID)).IsAdmin() {
		return m.opts.AdminRedirect, nil
	}
	return m.opts.DefaultRedirect, nil
}

// CompletePasswordReset sets a new password during a recovery-mode session.
func (m *Manager) CompletePasswordReset(ctx context.Context, newPassword string) error {
	if len([]rune(newPassword)) < MinPasswordLength {
		return ErrWeakPassword
	}

	m.mu.RLock()
	recovering := m.session != nil && m.session.Recovery
	m.mu.RUnlock()
	if !recovering {
		return ErrNoRecoverySession
	}

	if err := m.auth.UpdateUser(ctx, newPassword); err != nil {
		if errors.Is(err, identity.ErrWeakPassword) {
			return ErrWeakPassword
		}
		return fmt.Errorf("%w: %v", ErrAuthService, err)
	}
	return nil
}
