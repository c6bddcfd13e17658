package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/video-access/internal/handler"
)

// Tier names the rate-limit bucket a route draws from.
type Tier string

const (
	TierNone          Tier = "none"
	TierDefault       Tier = "default"
	TierRequestToken  Tier = "request-token"
	TierValidateToken Tier = "validate-token"
)

// Guards are the middleware a route can opt into. JWT authenticates, Admin
// runs after it, Limits are keyed by tier and Cache replays responses.
// Missing entries mean the guard is skipped.
type Guards struct {
	JWT    echo.MiddlewareFunc
	Admin  echo.MiddlewareFunc
	Limits map[Tier]echo.MiddlewareFunc
	Cache  echo.MiddlewareFunc
}

// Handlers groups the HTTP handlers the routes dispatch to.
type Handlers struct {
	Auth   *handler.AuthHandler
	Videos *handler.VideoHandler
	Admin  *handler.AdminHandler
	Users  *handler.UserHandler
	Health *handler.HealthHandler
}

// route is one row of the route table.
type route struct {
	method string
	path   string
	h      echo.HandlerFunc
	auth   bool
	admin  bool
	tier   Tier
	cached bool
}

const apiPrefix = "/api/v1"

// ServerOptions configures the Echo instance itself.
type ServerOptions struct {
	Origins []string
	Log     *slog.Logger
}

// NewServer returns an Echo instance with request validation, panic
// recovery, request ids, CORS and an access log wired to slog.
func NewServer(opts ServerOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()

	log := opts.Log.With("component", "http")
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     opts.Origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "ip", v.RemoteIP, "request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	return e
}

// Register mounts every API route under /api/v1.
func Register(e *echo.Echo, h Handlers, g Guards) {
	api := e.Group(apiPrefix)
	var table []route
	table = append(table, healthRoutes(h.Health)...)
	table = append(table, authRoutes(h.Auth)...)
	table = append(table, videoRoutes(h.Videos)...)
	table = append(table, adminRoutes(h.Admin)...)
	table = append(table, userRoutes(h.Users)...)
	for _, r := range table {
		api.Add(r.method, r.path, r.h, r.middleware(g)...)
	}
}

// middleware orders the guards: authentication first so user-keyed limits
// and the admin check see the caller.
func (r route) middleware(g Guards) []echo.MiddlewareFunc {
	var mw []echo.MiddlewareFunc
	if r.auth && g.JWT != nil {
		mw = append(mw, g.JWT)
	}
	if r.admin && g.Admin != nil {
		mw = append(mw, g.Admin)
	}
	if r.tier != TierNone {
		if l := g.Limits[r.tier]; l != nil {
			mw = append(mw, l)
		}
	}
	if r.cached && g.Cache != nil {
		mw = append(mw, g.Cache)
	}
	return mw
}

func healthRoutes(h *handler.HealthHandler) []route {
	return []route{
		{method: http.MethodGet, path: "/health", h: h.Health, tier: TierNone},
		{method: http.MethodGet, path: "/health/ping", h: h.Ping, tier: TierNone},
	}
}
