package identity

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/config"
	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
	"github.com/Kouriin1/Servicio-Comunitario/internal/security"
)

func init() {
	security.DefaultParams = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	profiles map[string]models.Profile
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[string]models.Account{}, profiles: map[string]models.Profile{}}
}

func (f *fakeAccounts) CreateWithProfile(_ context.Context, account models.Account, profile models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == account.Email {
			return repository.ErrDuplicate
		}
	}
	f.accounts[account.ID] = account
	f.profiles[profile.ID] = profile
	return nil
}

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, repository.ErrAccountNotFound
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return models.Account{}, repository.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, id string, hash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.PasswordHash = hash
	f.accounts[id] = a
	return nil
}

func (f *fakeAccounts) Confirm(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	now := time.Now()
	a.Status = models.AccountStatusActive
	a.ConfirmedAt = &now
	f.accounts[id] = a
	return nil
}

func (f *fakeAccounts) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeAccounts) setRole(id string, role models.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[id]
	p.Role = string(role)
	f.profiles[id] = p
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions []models.Session
}

func (f *fakeSessions) Upsert(_ context.Context, session models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.LastSeenAt = time.Now()
	for i, s := range f.sessions {
		if s.UserID == session.UserID && s.DeviceID == session.DeviceID {
			f.sessions[i] = session
			return nil
		}
	}
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeSessions) CountByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

// DeleteOldestSessions keeps the keepLatest most recently inserted sessions of the user.
func (f *fakeSessions) DeleteOldestSessions(_ context.Context, userID string, keepLatest int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []models.Session
	seen := 0
	for i := len(f.sessions) - 1; i >= 0; i-- {
		s := f.sessions[i]
		if s.UserID == userID {
			seen++
			if seen > keepLatest {
				continue
			}
		}
		kept = append([]models.Session{s}, kept...)
	}
	f.sessions = kept
	return nil
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (f *fakeSessions) FindByRefreshHash(_ context.Context, hash []byte) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if bytes.Equal(s.RefreshTokenHash, hash) {
			return s, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (f *fakeSessions) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sessions {
		if s.ID == id {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (f *fakeSessions) Touch(context.Context, string) error { return nil }

type queuedTask struct {
	taskType string
	payload  any
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (f *fakeQueue) Enqueue(_ context.Context, taskType string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, queuedTask{taskType: taskType, payload: payload})
	return "1-0", nil
}

type serviceFixture struct {
	svc      *Service
	accounts *fakeAccounts
	sessions *fakeSessions
	queue    *fakeQueue
	redis    *redis.Client
	mr       *miniredis.Miniredis
}

func newServiceFixture(t *testing.T, mutate func(*config.SecurityConfig)) *serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.SecurityConfig{
		JWTAccessSecret:   "test-secret",
		JWTAccessTTL:      time.Hour,
		JWTRefreshTTL:     24 * time.Hour,
		MaxSessions:       5,
		RecoveryTTL:       time.Hour,
		ConfirmationTTL:   time.Hour,
		MinPasswordLength: 6,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	portal := config.PortalConfig{
		RecoveryRedirectURL: "http://portal.test/reset-password",
		ConfirmRedirectURL:  "http://portal.test/login",
	}

	accounts := newFakeAccounts()
	sessions := &fakeSessions{}
	q := &fakeQueue{}
	svc := NewService(accounts, sessions, accounts, client, q, cfg, portal, zerolog.Nop())
	return &serviceFixture{svc: svc, accounts: accounts, sessions: sessions, queue: q, redis: client, mr: mr}
}
