package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

const deviceKeyPrefix = "auth:device:"

// Backend is the subset of Service a Client drives.
type Backend interface {
	SignUp(ctx context.Context, email, password string, meta models.SignUpMetadata, deviceID string) (*models.AuthSession, error)
	SignIn(ctx context.Context, email, password, deviceID string) (*models.AuthSession, error)
	Refresh(ctx context.Context, refreshToken, deviceID string) (*models.AuthSession, error)
	SignOut(ctx context.Context, sessionID string) error
	RequestRecovery(ctx context.Context, email, redirectURL string) error
	VerifyRecovery(ctx context.Context, token, deviceID string) (*models.AuthSession, error)
	ConfirmEmail(ctx context.Context, token, deviceID string) (*models.AuthSession, error)
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// Client is the auth client of one device. It keeps the device session in
// Redis and notifies listeners of every session transition.
type Client struct {
	backend  Backend
	store    *redis.Client
	deviceID string
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(models.AuthEvent, *models.AuthSession)
}

func NewClient(backend Backend, store *redis.Client, deviceID string, ttl time.Duration, log zerolog.Logger) *Client {
	return &Client{
		backend:  backend,
		store:    store,
		deviceID: deviceID,
		ttl:      ttl,
		log:      log.With().Str("device_id", deviceID).Logger(),
		now:      time.Now,
	}
}

func (c *Client) DeviceID() string {
	return c.deviceID
}

// OnAuthStateChange registers fn and returns its unsubscribe handle.
func (c *Client) OnAuthStateChange(fn func(models.AuthEvent, *models.AuthSession)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					break
				}
			}
			c.mu.Unlock()
		})
	}
}

func (c *Client) emit(event models.AuthEvent, session *models.AuthSession) {
	c.mu.Lock()
	snapshot := make([]listener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	for _, l := range snapshot {
		l.fn(event, session)
	}
}

// GetSession returns the stored session, refreshing it when the access token
// has expired. A session that cannot be refreshed is dropped.
func (c *Client) GetSession(ctx context.Context) (*models.AuthSession, error) {
	session, err := c.load(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	if !session.Expired(c.now()) {
		return session, nil
	}

	refreshed, err := c.backend.Refresh(ctx, session.RefreshToken, c.deviceID)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrInvalidCredentials) {
			c.log.Info().Err(err).Msg("stored session could not be refreshed")
			if err := c.clear(ctx); err != nil {
				return nil, err
			}
			c.emit(models.AuthEventSignedOut, nil)
			return nil, nil
		}
		return nil, err
	}
	if err := c.save(ctx, refreshed); err != nil {
		return nil, err
	}
	c.emit(models.AuthEventTokenRefreshed, refreshed)
	return refreshed, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	session, err := c.backend.SignIn(ctx, email, password, c.deviceID)
	if err != nil {
		return nil, err
	}
	return session, c.establish(ctx, models.AuthEventSignedIn, session)
}

// SignUp returns a nil session when the account still has to be confirmed.
func (c *Client) SignUp(ctx context.Context, email, password string, meta models.SignUpMetadata) (*models.AuthSession, error) {
	session, err := c.backend.SignUp(ctx, email, password, meta, c.deviceID)
	if err != nil || session == nil {
		return nil, err
	}
	return session, c.establish(ctx, models.AuthEventSignedIn, session)
}

func (c *Client) ConfirmEmail(ctx context.Context, token string) (*models.AuthSession, error) {
	session, err := c.backend.ConfirmEmail(ctx, token, c.deviceID)
	if err != nil {
		return nil, err
	}
	return session, c.establish(ctx, models.AuthEventSignedIn, session)
}

func (c *Client) VerifyRecovery(ctx context.Context, token string) (*models.AuthSession, error) {
	session, err := c.backend.VerifyRecovery(ctx, token, c.deviceID)
	if err != nil {
		return nil, err
	}
	return session, c.establish(ctx, models.AuthEventPasswordRecovery, session)
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return c.backend.RequestRecovery(ctx, email, redirectURL)
}

func (c *Client) UpdateUser(ctx context.Context, password string) error {
	session, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrNoSession
	}
	if err := c.backend.UpdatePassword(ctx, session.AccessToken, password); err != nil {
		return err
	}
	c.emit(models.AuthEventUserUpdated, session)
	return nil
}

// SignOut revokes the session with the backend. The local session is always
// dropped and listeners notified, even if the backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	session, loadErr := c.load(ctx)

	var backendErr error
	if session != nil {
		backendErr = c.backend.SignOut(ctx, session.ID)
	}
	clearErr := c.clear(ctx)
	c.emit(models.AuthEventSignedOut, nil)

	return errors.Join(loadErr, backendErr, clearErr)
}

// Close drops every listener.
func (c *Client) Close() {
	c.mu.Lock()
	c.listeners = nil
	c.mu.Unlock()
}

func (c *Client) establish(ctx context.Context, event models.AuthEvent, session *models.AuthSession) error {
	if err := c.save(ctx, session); err != nil {
		return err
	}
	c.emit(event, session)
	return nil
}

func (c *Client) key() string {
	return deviceKeyPrefix + c.deviceID
}

func (c *Client) load(ctx context.Context) (*models.AuthSession, error) {
	raw, err := c.store.Get(ctx, c.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load device session: %w", err)
	}
	var session models.AuthSession
	if err := json.Unmarshal(raw, &session); err != nil {
		c.log.Warn().Err(err).Msg("discarding unreadable device session")
		_ = c.clear(ctx)
		return nil, nil
	}
	return &session, nil
}

func (c *Client) save(ctx context.Context, session *models.AuthSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, c.key(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("save device session: %w", err)
	}
	return nil
}

func (c *Client) clear(ctx context.Context) error {
	if err := c.store.Del(ctx, c.key()).Err(); err != nil {
		return fmt.Errorf("clear device session: %w", err)
	}
	return nil
}
