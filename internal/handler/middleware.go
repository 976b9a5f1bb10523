package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xtxerr/vigil/internal/auth"
	"github.com/xtxerr/vigil/internal/logging"
)

const (
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"

	// HeaderAPIKey is an alternative to the api_key query parameter.
	HeaderAPIKey = "X-API-Key"

	roleKey = "vigil.role"
)

// Recorder receives one event per finished request.
type Recorder interface {
	RequestCompleted(route string, code int, took time.Duration)
}

// RequestID assigns every request an id, reusing the caller's
// X-Request-ID when present, and stores it in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog logs every request and reports it to rec when non-nil.
func AccessLog(rec Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		took := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		logger := logging.WithContext(c.Request.Context())
		attrs := []any{
			"component", "http",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", took,
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request", attrs...)
		} else {
			logger.Info("request", attrs...)
		}

		if rec != nil {
			rec.RequestCompleted(route, status, took)
		}
	}
}

// authenticate resolves the caller's API key to a role and stores it on
// the context. Failures are counted per client IP.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if h.limiter != nil && h.limiter.IsBlocked(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Too many failed authentication attempts"})
			return
		}

		key := c.Query("api_key")
		if key == "" {
			key = c.GetHeader(HeaderAPIKey)
		}

		role, err := h.authn.Authenticate(key)
		if err != nil {
			if h.limiter != nil {
				h.limiter.RecordFailure(ip)
			}
			logging.WithContext(c.Request.Context()).Warn("authentication failed",
				"component", "http",
				"client_ip", ip,
				"key_present", key != "")
			h.fail(c, err)
			return
		}
		if h.limiter != nil {
			h.limiter.Reset(ip)
		}

		c.Set(roleKey, role)
		c.Request = c.Request.WithContext(logging.ContextWithRole(c.Request.Context(), string(role)))
		c.Next()
	}
}

// authorize aborts with 403 unless the authenticated role holds p.
func (h *Handler) authorize(c *gin.Context, p auth.Permission) bool {
	role, _ := c.Get(roleKey)
	r, _ := role.(auth.Role)
	if err := auth.Authorize(r, p); err != nil {
		h.fail(c, err)
		return false
	}
	return true
}
