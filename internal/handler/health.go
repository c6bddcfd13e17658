package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether the database answers. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers liveness probes for load balancers and monitoring.
type HealthHandler struct {
	db             Pinger
	env            string
	version        string
	mailConfigured bool
	started        time.Time
	now            func() time.Time
}

func NewHealthHandler(db Pinger, env, version string, mailConfigured bool) *HealthHandler {
	return &HealthHandler{
		db:             db,
		env:            env,
		version:        version,
		mailConfigured: mailConfigured,
		started:        time.Now(),
		now:            time.Now,
	}
}

// Health reports process and dependency state. A failed database ping
// turns the answer into a 503 so probes take the instance out.
func (h *HealthHandler) Health(c echo.Context) error {
	now := h.now()
	status, code := "ok", http.StatusOK
	database := "connected"
	if h.db == nil {
		database = "not_configured"
	} else {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			database, status, code = "unreachable", "degraded", http.StatusServiceUnavailable
		}
	}
	email := "not_configured"
	if h.mailConfigured {
		email = "configured"
	}
	return c.JSON(code, echo.Map{
		"status":      status,
		"timestamp":   now.UTC().Format(time.RFC3339),
		"uptime":      now.Sub(h.started).Seconds(),
		"environment": h.env,
		"version":     h.version,
		"service":     "video-access-api",
		"database":    database,
		"email":       email,
	})
}

func (h *HealthHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "pong",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
