package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/content"
	"github.com/Kouriin1/Servicio-Comunitario/internal/identity"
	"github.com/Kouriin1/Servicio-Comunitario/internal/session"
)

// Workspace is the per-device view of the portal: the device's auth client,
// the session manager following it and the content store following that.
type Workspace struct {
	DeviceID string
	Auth     *identity.Client
	Session  *session.Manager
	Content  *content.Store

	closeOnce sync.Once
	closed    bool
}

// Close releases the subscriptions between the three components.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		if w.Content != nil {
			w.Content.Close()
		}
		if w.Session != nil {
			w.Session.Close()
		}
		if w.Auth != nil {
			w.Auth.Close()
		}
		w.closed = true
	})
}

type Factory func(ctx context.Context, deviceID string) (*Workspace, error)

type Deps struct {
	Identity       identity.Backend
	Redis          *redis.Client
	Profiles       session.ProfileStore
	Content        content.Backend
	SessionTTL     time.Duration
	SessionOptions session.Options
	ContentOptions content.Options
}

// NewFactory wires a workspace per device and primes it: the persisted
// session is restored and the catalogs and published content are loaded.
// Load failures are logged; the workspace is usable with an empty mirror.
func NewFactory(deps Deps, log zerolog.Logger) Factory {
	return func(ctx context.Context, deviceID string) (*Workspace, error) {
		wlog := log.With().Str("device_id", deviceID).Logger()

		auth := identity.NewClient(deps.Identity, deps.Redis, deviceID, deps.SessionTTL, wlog)
		manager := session.NewManager(auth, deps.Profiles, deps.SessionOptions, wlog)
		store := content.NewStore(deps.Content, manager, deps.ContentOptions, wlog)

		w := &Workspace{DeviceID: deviceID, Auth: auth, Session: manager, Content: store}

		if err := manager.Restore(ctx); err != nil {
			wlog.Warn().Err(err).Msg("restore session failed")
		}
		if err := store.LoadCatalogs(ctx); err != nil {
			wlog.Warn().Err(err).Msg("initial catalog load failed")
		}
		if err := store.LoadContent(ctx); err != nil {
			wlog.Warn().Err(err).Msg("initial content load failed")
		}
		return w, nil
	}
}
