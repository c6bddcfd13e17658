package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-access/internal/handler"
)

// authRoutes: the two code endpoints are public and carry their own tight
// buckets; the rest need a session.
func authRoutes(h *handler.AuthHandler) []route {
	return []route{
		{method: http.MethodPost, path: "/auth/request-token", h: h.RequestToken, tier: TierRequestToken},
		{method: http.MethodPost, path: "/auth/validate-token", h: h.ValidateToken, tier: TierValidateToken},
		{method: http.MethodPost, path: "/auth/logout", h: h.Logout, auth: true, tier: TierDefault},
		{method: http.MethodGet, path: "/auth/me", h: h.Me, auth: true, tier: TierDefault},
		{method: http.MethodGet, path: "/auth/refresh", h: h.Refresh, auth: true, tier: TierDefault},
		{method: http.MethodGet, path: "/auth/stats", h: h.Stats, auth: true, admin: true, tier: TierDefault},
	}
}

// videoRoutes serve the caller's entitled catalog. Categories are the same
// for everyone, so that response is cached.
func videoRoutes(h *handler.VideoHandler) []route {
	return []route{
		{method: http.MethodGet, path: "/videos", h: h.List, auth: true, tier: TierDefault},
		{method: http.MethodGet, path: "/videos/search", h: h.Search, auth: true, tier: TierDefault},
		{method: http.MethodGet, path: "/videos/categories", h: h.Categories, auth: true, tier: TierDefault, cached: true},
		{method: http.MethodGet, path: "/videos/:id", h: h.Get, auth: true, tier: TierDefault},
		{method: http.MethodPost, path: "/videos/:id/watch", h: h.Watch, auth: true, tier: TierDefault},
		{method: http.MethodPost, path: "/videos/:id/progress", h: h.Progress, auth: true, tier: TierDefault},
	}
}

// adminRoutes manage the catalog and grants; all of them need a session
// and pass the admin gate.
func adminRoutes(h *handler.AdminHandler) []route {
	return []route{
		adminRoute(http.MethodPost, "/videos", h.Create),
		adminRoute(http.MethodGet, "/videos/admin/all", h.ListAll),
		adminRoute(http.MethodPatch, "/videos/admin/:id", h.Update),
		adminRoute(http.MethodDelete, "/videos/admin/:id", h.Delete),
		adminRoute(http.MethodPost, "/videos/admin/assign", h.Assign),
		adminRoute(http.MethodDelete, "/videos/admin/access/:userId/:videoId", h.Revoke),
		adminRoute(http.MethodGet, "/videos/admin/search", h.Search),
		adminRoute(http.MethodGet, "/videos/admin/stats", h.Stats),
		adminRoute(http.MethodGet, "/videos/admin/stats/:id", h.StatsByID),
	}
}

// userRoutes are the administrative user directory. Removal is a soft
// deactivation.
func userRoutes(h *handler.UserHandler) []route {
	return []route{
		adminRoute(http.MethodPost, "/users", h.Create),
		adminRoute(http.MethodGet, "/users/search", h.Search),
		adminRoute(http.MethodGet, "/users/stats", h.Stats),
		adminRoute(http.MethodGet, "/users/:id", h.Get),
		adminRoute(http.MethodPatch, "/users/:id", h.Update),
		adminRoute(http.MethodDelete, "/users/:id", h.Deactivate),
	}
}

func adminRoute(method, path string, fn echo.HandlerFunc) route {
	return route{method: method, path: path, h: fn, auth: true, admin: true, tier: TierDefault}
}
