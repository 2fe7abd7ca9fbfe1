package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
	"github.com/Kouriin1/Servicio-Comunitario/internal/security"
)

const (
	claimsKey = "access_claims"
	userKey   = "current_user"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*security.AccessClaims, error)
}

// RequireSession admits requests carrying a bearer token that belongs to the
// session currently held by the device's workspace.
func RequireSession(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		w := CurrentWorkspace(c)
		if w == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no_workspace"})
			return
		}

		claims, err := authn.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		if claims.DeviceID != w.DeviceID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_mismatch"})
			return
		}

		if w.Session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
			return
		}
		state := w.Session.State()
		if state.Session == nil || state.Session.ID != claims.SessionID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
			return
		}
		if state.User == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "profile_unavailable"})
			return
		}

		c.Set(claimsKey, *claims)
		c.Set(userKey, state.User)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
