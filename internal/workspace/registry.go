package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Kouriin1/Servicio-Comunitario/internal/metrics"
)

var ErrMissingDevice = errors.New("missing device id")

type Config struct {
	MaxWorkspaces int64
	IdleTTL       time.Duration
}

// Registry keeps one workspace per device. Workspaces idle for longer than
// IdleTTL, or pushed out when MaxWorkspaces is reached, are closed.
type Registry struct {
	cache *ristretto.Cache
	build Factory
	ttl   time.Duration
	group singleflight.Group
	log   zerolog.Logger
}

func NewRegistry(build Factory, cfg Config, log zerolog.Logger) (*Registry, error) {
	if cfg.MaxWorkspaces <= 0 {
		cfg.MaxWorkspaces = 10000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}

	r := &Registry{
		build: build,
		ttl:   cfg.IdleTTL,
		log:   log.With().Str("component", "workspace").Logger(),
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxWorkspaces * 10,
		MaxCost:     cfg.MaxWorkspaces,
		BufferItems: 64,
		OnEvict:     r.onEvict,
	})
	if err != nil {
		return nil, fmt.Errorf("workspace cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Get returns the device's workspace, building it on first use. Each hit
// extends the idle deadline.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Workspace, error) {
	if deviceID == "" {
		return nil, ErrMissingDevice
	}
	if w, ok := r.lookup(deviceID); ok {
		r.cache.SetWithTTL(deviceID, w, 1, r.ttl)
		return w, nil
	}

	v, err, _ := r.group.Do(deviceID, func() (interface{}, error) {
		if w, ok := r.lookup(deviceID); ok {
			return w, nil
		}
		w, err := r.build(ctx, deviceID)
		if err != nil {
			return nil, err
		}
		if !r.cache.SetWithTTL(deviceID, w, 1, r.ttl) {
			r.log.Warn().Str("device_id", deviceID).Msg("workspace not cached")
		}
		r.cache.Wait()
		metrics.WorkspacesOpened.Inc()
		r.log.Debug().Str("device_id", deviceID).Msg("workspace opened")
		return w, nil
	})
	if err != nil {
		return nil, fmt.Errorf("build workspace: %w", err)
	}
	return v.(*Workspace), nil
}

func (r *Registry) lookup(deviceID string) (*Workspace, bool) {
	v, ok := r.cache.Get(deviceID)
	if !ok {
		return nil, false
	}
	w, ok := v.(*Workspace)
	return w, ok
}

// Evict drops and closes the device's workspace, if any.
func (r *Registry) Evict(deviceID string) {
	w, ok := r.lookup(deviceID)
	r.cache.Del(deviceID)
	r.cache.Wait()
	if ok {
		w.Close()
		metrics.WorkspacesEvicted.Inc()
	}
}

func (r *Registry) onEvict(item *ristretto.Item) {
	w, ok := item.Value.(*Workspace)
	if !ok || w == nil {
		return
	}
	r.log.Debug().Str("device_id", w.DeviceID).Msg("workspace evicted")
	w.Close()
	metrics.WorkspacesEvicted.Inc()
}

func (r *Registry) Close() {
	r.cache.Clear()
	r.cache.Close()
}
