// Package handler serves the vigil HTTP API.
//
// Data endpoints authenticate the caller, trigger one best-effort
// ingestion cycle, authorize, parse the optional time bounds and query.
// Errors are returned as {"detail": "..."}.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xtxerr/vigil/internal/auth"
	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

// Service is the storage surface the handler needs.
type Service interface {
	TriggerIngestion(ctx context.Context)
	Readings(ctx context.Context, b timerange.Bounds) ([]types.ReadingView, error)
	Invalidations(ctx context.Context, b timerange.Bounds) ([]types.InvalidationView, error)
	Ping(ctx context.Context) error
	Stats() storage.ServiceStats
}

// Config configures a Handler.
type Config struct {
	// Authenticator resolves API keys (required).
	Authenticator *auth.Authenticator

	// Location interprets time bounds without an offset. Nil means
	// time.Local.
	Location *time.Location

	// Limiter blocks clients after repeated failed authentication.
	Limiter *RateLimiter

	// Recorder receives request metrics.
	Recorder Recorder

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// Handler is the HTTP request handler.
type Handler struct {
	svc      Service
	authn    *auth.Authenticator
	loc      *time.Location
	limiter  *RateLimiter
	recorder Recorder
	metrics  http.Handler
}

// New creates a new handler.
func New(svc Service, cfg Config) (*Handler, error) {
	if svc == nil {
		return nil, errors.NewMissingField("service")
	}
	if cfg.Authenticator == nil {
		return nil, errors.NewMissingField("authenticator")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		svc:      svc,
		authn:    cfg.Authenticator,
		loc:      loc,
		limiter:  cfg.Limiter,
		recorder: cfg.Recorder,
		metrics:  cfg.Metrics,
	}, nil
}

// Router builds the gin engine with all routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(h.recorder))

	r.GET("/health", h.health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := r.Group("/", h.authenticate())
	{
		api.GET("/data", h.getData)
		api.GET("/invalidation_reasons", h.getInvalidations)
		api.GET("/discard_reasons", h.getInvalidations)
		api.GET("/stats", h.getStats)
	}

	return r
}

// =============================================================================
// Routes
// =============================================================================

func (h *Handler) getData(c *gin.Context) {
	ctx := c.Request.Context()
	h.svc.TriggerIngestion(ctx)

	if !h.authorize(c, auth.PermRead) {
		return
	}
	bounds, ok := h.bounds(c)
	if !ok {
		return
	}

	views, err := h.svc.Readings(ctx, bounds)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) getInvalidations(c *gin.Context) {
	ctx := c.Request.Context()
	h.svc.TriggerIngestion(ctx)

	if !h.authorize(c, auth.PermViewInvalidationReasons) {
		return
	}
	bounds, ok := h.bounds(c)
	if !ok {
		return
	}

	views, err := h.svc.Invalidations(ctx, bounds)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// getStats is restricted to roles that may see invalidation reasons,
// since the counters reveal them.
func (h *Handler) getStats(c *gin.Context) {
	if !h.authorize(c, auth.PermViewInvalidationReasons) {
		return
	}
	c.JSON(http.StatusOK, h.svc.Stats())
}

func (h *Handler) health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) bounds(c *gin.Context) (timerange.Bounds, bool) {
	b, err := timerange.ParseBounds(c.Query("start_time"), c.Query("end_time"), h.loc)
	if err != nil {
		h.fail(c, err)
		return timerange.Bounds{}, false
	}
	return b, true
}

// fail aborts with the status mapped from err.
func (h *Handler) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)

	var detail string
	switch status {
	case http.StatusUnauthorized:
		detail = "Invalid API key"
	case http.StatusForbidden:
		detail = "Insufficient permissions"
	case http.StatusBadRequest:
		detail = err.Error()
	case http.StatusServiceUnavailable:
		detail = "Service unavailable"
	default:
		detail = "Failed to retrieve data"
		logging.WithContext(c.Request.Context()).Error("request failed",
			"component", "http",
			"route", c.FullPath(),
			"error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
