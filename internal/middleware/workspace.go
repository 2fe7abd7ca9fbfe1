package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/workspace"
)

const (
	DeviceIDHeader = "X-Device-Id"
	workspaceKey   = "workspace"
)

type WorkspaceSource interface {
	Get(ctx context.Context, deviceID string) (*workspace.Workspace, error)
}

// Workspace resolves the calling device's workspace from the X-Device-Id
// header. Device ids must be UUIDs.
func Workspace(source WorkspaceSource, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(DeviceIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_device_id"})
			return
		}
		deviceID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_device_id"})
			return
		}

		w, err := source.Get(c.Request.Context(), deviceID.String())
		if err != nil {
			if errors.Is(err, workspace.ErrMissingDevice) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_device_id"})
				return
			}
			log.Error().Err(err).Str("device_id", deviceID.String()).Msg("open workspace failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "workspace_unavailable"})
			return
		}

		c.Set(workspaceKey, w)
		c.Next()
	}
}

func CurrentWorkspace(c *gin.Context) *workspace.Workspace {
	v, ok := c.Get(workspaceKey)
	if !ok {
		return nil
	}
	w, _ := v.(*workspace.Workspace)
	return w
}
