package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/Kouriin1/Servicio-Comunitario/internal/metrics"
)

// RateLimiter holds one token bucket per client IP.
type RateLimiter struct {
	scope    string
	limit    rate.Limit
	burst    int
	limiters sync.Map // map[string]*rate.Limiter
}

func NewRateLimiter(scope string, rps float64, burst int) *RateLimiter {
	return &RateLimiter{scope: scope, limit: rate.Limit(rps), burst: burst}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	return v.(*rate.Limiter)
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}

		if !l.limiter(ip).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues(l.scope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(l.scope).Inc()
		c.Next()
	}
}
